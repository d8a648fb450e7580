package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Publish product images left in the temporary directory",
	Long: `Find products whose image still points at the temporary upload
directory, move each image into the permanent directory and repoint the
product. Products whose image can no longer be found are logged and skipped.`,
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().Int("batch", 0, "maximum products to scan (default: service.promote_batch)")

	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg, err := appConfig(cmd.Context())
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("promoting staged images", "batch", cfg.Service.PromoteBatch)

	promoted, err := a.catalog.RetryPromotions(cmd.Context(), cfg.Service.PromoteBatch)
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}

	slog.Info("promotion complete", "promoted", promoted)
	return nil
}
