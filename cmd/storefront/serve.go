package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/config"
	storefronthttp "github.com/sagarc03/storefront/http"
	"github.com/sagarc03/storefront/keybackend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the storefront HTTP server.

Static assets are served from the public directory, the catalog API is
mounted next to them, and admin routes require HTTP Basic credentials
from the admin key store.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 5708, env: STOREFRONT_SERVER_PORT)")
	serveCmd.Flags().Bool("auto-migrate", true, "create missing tables on startup")
	serveCmd.Flags().Bool("print-config", false, "print the effective configuration and exit")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := appConfig(cmd.Context())
	if err != nil {
		return err
	}

	if printCfg, _ := cmd.Flags().GetBool("print-config"); printCfg {
		return printConfig(cmd, cfg)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	assets, err := storefront.NewAssetServer(a.paths.AssetRoot, a.storage)
	if err != nil {
		return fmt.Errorf("create asset server: %w", err)
	}

	gate, err := storefront.NewUploadGate(ctx, a.storage, cfg.UploadGateConfig(a.paths))
	if err != nil {
		return fmt.Errorf("create upload gate: %w", err)
	}

	keys, err := keybackend.NewKeyStore(cfg.Admin)
	if err != nil {
		return fmt.Errorf("load admin keys: %w", err)
	}
	if keys.Len() == 0 {
		slog.Warn("no admin keys configured, admin routes will reject every request")
	}

	handlerConfig := cfg.HandlerConfig(keys)
	handler := storefronthttp.NewHandler(&handlerConfig, a.catalog, assets, gate, storefronthttp.NewMetrics())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"env", cfg.Env,
			"static_prefix", cfg.Server.StaticPrefix,
			"asset_root", assets.Root(),
			"max_upload", humanize.IBytes(uint64(gate.MaxBytes())),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// printConfig writes the effective configuration as YAML with admin secrets
// replaced.
func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	redacted := *cfg
	redacted.Admin.Inline = make([]keybackend.KeyPair, len(cfg.Admin.Inline))
	for i, p := range cfg.Admin.Inline {
		redacted.Admin.Inline[i] = keybackend.KeyPair{AccessKey: p.AccessKey, SecretKey: "********"}
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
