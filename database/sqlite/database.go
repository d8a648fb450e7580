package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/storefront"
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables storefront.Tables
}

// Connect opens a SQLite database.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables storefront.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the product and customer repositories.
func (d *database) GetRepo() storefront.Repos {
	return storefront.Repos{
		Products:  &productRepo{db: d.db, tables: d.tables},
		Customers: &customerRepo{db: d.db, tables: d.tables},
	}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
