// Package config provides configuration loading and validation for the storefront.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STOREFRONT_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with STOREFRONT_ prefix:
//   - server.port → STOREFRONT_SERVER_PORT
//   - database.type → STOREFRONT_DATABASE_TYPE
//   - storage.upload_path → STOREFRONT_STORAGE_UPLOAD_PATH, or UPLOAD_PATH
//   - storage.upload_path_temp → STOREFRONT_STORAGE_UPLOAD_PATH_TEMP, or UPLOAD_PATH_TEMP
//
// # Storage Layout
//
// The asset root is storage.public_dir below storage.server_root. Both upload
// directories are relative to the asset root. StorageConfig.Resolve runs every
// one of them through storefront.ResolvePath, so a configured path cannot
// point outside the directory that contains it.
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Database type must be sqlite or postgres
//   - Upload paths must differ and min_size cannot exceed max_size
//   - Log level must be debug, info, warn, or error
//
// Table names and storage paths are checked after the struct tags.
package config
