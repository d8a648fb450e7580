package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storefront/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "storefront",
	Short:   "Storefront catalog server with hardened asset and upload handling",
	Long: `Storefront serves a product catalog and customer administration API.
Static assets are served from a sandboxed asset root, uploads are validated
and renamed before they are staged, and list queries are sanitized before
they reach the database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeat to merge (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "environment: dev, prod (default: dev, env: STOREFRONT_ENV)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: STOREFRONT_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: storefront.db, env: STOREFRONT_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("server-root", "", "directory the public dir is resolved against (default: ., env: STOREFRONT_STORAGE_SERVER_ROOT)")
	rootCmd.PersistentFlags().String("public-dir", "", "asset root below the server root (default: public, env: STOREFRONT_STORAGE_PUBLIC_DIR)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: STOREFRONT_LOG_LEVEL)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
