package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/internal"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return internal.QuoteIdentifier(name)
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations in dependency order.
func getTableMigrations(tables storefront.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Products,
			Up:        createProductsTable(tables.Products),
			Down:      dropTable(tables.Products),
		},
		{
			TableName: tables.Customers,
			Up:        createCustomersTable(tables.Customers),
			Down:      dropTable(tables.Customers),
		},
		{
			TableName: tables.Orders,
			Up:        createOrdersTable(tables.Orders, tables.Customers),
			Down:      dropTable(tables.Orders),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables storefront.Tables) error {
	migrations := getTableMigrations(tables)

	for _, migration := range migrations {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables storefront.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createIndexes(ctx context.Context, db *sql.DB, tableName string, columns ...string) error {
	for _, col := range columns {
		index := quoteIdentifier(fmt.Sprintf("idx_%s_%s", tableName, col))
		indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, index, quoteIdentifier(tableName), col)
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index %s: %w", col, err)
		}
	}
	return nil
}

func createProductsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				title TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL,
				category TEXT NOT NULL,
				price REAL,
				image_file_name TEXT NOT NULL,
				image_original_name TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return createIndexes(ctx, db, tableName, "created_at", "image_file_name")
	}
}

func createCustomersTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				roles TEXT NOT NULL,
				total_amount REAL NOT NULL DEFAULT 0,
				order_count INTEGER NOT NULL DEFAULT 0,
				last_order_id TEXT,
				last_order_date TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return createIndexes(ctx, db, tableName, "created_at", "last_order_id")
	}
}

func createOrdersTable(tableName, customersTable string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				order_number INTEGER NOT NULL UNIQUE,
				customer_id TEXT NOT NULL REFERENCES %s (id),
				delivery_address TEXT NOT NULL,
				total REAL NOT NULL,
				created_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName), quoteIdentifier(customersTable))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return createIndexes(ctx, db, tableName, "customer_id")
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
