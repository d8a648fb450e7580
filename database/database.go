package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/postgres"
	"github.com/sagarc03/storefront/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	// Tables names the product, customer and order tables
	Tables storefront.Tables `mapstructure:"tables" yaml:"tables"`
	// AutoMigrate creates missing tables when the server starts
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Database is an open metadata backend.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Migrate creates missing tables and indexes. It is idempotent.
	Migrate(ctx context.Context) error

	// Validate checks that every table exists with the expected columns.
	//
	// Returns:
	//   - error: describes every missing or mismatched column
	Validate(ctx context.Context) error

	// GetRepo returns the repositories backed by this database.
	GetRepo() storefront.Repos

	Close() error
}

// Connect opens the configured backend. It does not migrate or validate;
// callers decide which of the two a command needs.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
