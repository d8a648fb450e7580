// Package database provides a unified interface for connecting to metadata backends.
//
// The package supports PostgreSQL and SQLite and hands out the product and
// customer repositories the catalog service runs on.
//
// # Supported Backends
//
//   - PostgreSQL: Production-ready backend using pgx connection pool
//   - SQLite: Lightweight backend suitable for development and single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "storefront.db",
//	    Tables: storefront.Tables{Products: "products", Customers: "customers", Orders: "orders"},
//	}
//
//	db, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	repos := db.GetRepo()
//
// List queries are rendered from a storefront.FilterSpec by database/internal,
// which only emits columns from a fixed per-table whitelist.
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
