package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/storefront"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
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

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables storefront.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables storefront.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func indexName(tableName, suffix string) string {
	return pgx.Identifier{fmt.Sprintf("idx_%s_%s", tableName, suffix)}.Sanitize()
}

func createProductsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				title TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL,
				category TEXT NOT NULL,
				price DOUBLE PRECISION,
				image_file_name TEXT NOT NULL,
				image_original_name TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (created_at);

			CREATE INDEX IF NOT EXISTS %s ON %s (image_file_name text_pattern_ops);
		`,
			quotedTable,
			indexName(tableName, "created_at"), quotedTable,
			indexName(tableName, "image_file_name"), quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create products table: %w", err)
		}
		return nil
	}
}

func createCustomersTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				roles TEXT[] NOT NULL,
				total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
				order_count INTEGER NOT NULL DEFAULT 0,
				last_order_id UUID,
				last_order_date TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (created_at);

			CREATE INDEX IF NOT EXISTS %s ON %s (last_order_id);
		`,
			quotedTable,
			indexName(tableName, "created_at"), quotedTable,
			indexName(tableName, "last_order_id"), quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create customers table: %w", err)
		}
		return nil
	}
}

func createOrdersTable(tableName, customersTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				order_number BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
				customer_id UUID NOT NULL REFERENCES %s (id),
				delivery_address TEXT NOT NULL,
				total DOUBLE PRECISION NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (customer_id);
		`,
			quotedTable, pgx.Identifier{customersTable}.Sanitize(),
			indexName(tableName, "customer_id"), quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create orders table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
