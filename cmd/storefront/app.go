package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/config"
	"github.com/sagarc03/storefront/database"
	"github.com/sagarc03/storefront/filesystem"
)

// app holds the components shared by serve and promote.
type app struct {
	db       database.Database
	root     *os.Root
	paths    config.Paths
	storage  *filesystem.Store
	promoter *storefront.AssetPromoter
	catalog  *storefront.CatalogService
}

func openDatabase(ctx context.Context, cfg database.Config, migrate bool) (database.Database, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if migrate {
		if err = db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("connected to database", "type", cfg.Type)
	return db, nil
}

func openAssetRoot(storage config.StorageConfig) (*os.Root, config.Paths, error) {
	paths, err := storage.Resolve()
	if err != nil {
		return nil, config.Paths{}, fmt.Errorf("resolve storage paths: %w", err)
	}

	if err = os.MkdirAll(paths.AssetRoot, 0o750); err != nil {
		return nil, config.Paths{}, fmt.Errorf("create asset root: %w", err)
	}

	root, err := os.OpenRoot(paths.AssetRoot)
	if err != nil {
		return nil, config.Paths{}, fmt.Errorf("open asset root: %w", err)
	}
	return root, paths, nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := openDatabase(ctx, cfg.Database, cfg.Database.AutoMigrate)
	if err != nil {
		return nil, err
	}

	root, paths, err := openAssetRoot(cfg.Storage)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{db: db, root: root, paths: paths, storage: filesystem.NewFileStorage(root)}

	a.promoter, err = storefront.NewAssetPromoter(ctx, a.storage, paths.TempDir, paths.PermDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create promoter: %w", err)
	}

	repos := db.GetRepo()
	a.catalog, err = storefront.NewCatalogService(repos.Products, repos.Customers, a.promoter, storefront.ServiceConfig{
		CleanupTimeout: cfg.CleanupTimeout(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create catalog service: %w", err)
	}

	slog.Info("asset root ready", "root", paths.AssetRoot, "temp", paths.TempDir, "images", paths.PermDir)
	return a, nil
}

func (a *app) Close() {
	err := errors.Join(a.root.Close(), a.db.Close())
	if err != nil {
		slog.Warn("shutdown cleanup failed", "err", err)
	}
}

func appConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
