package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database"
	storefronthttp "github.com/sagarc03/storefront/http"
	"github.com/sagarc03/storefront/keybackend"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "STOREFRONT"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for the storefront.
type Config struct {
	Env       string                    `mapstructure:"env" yaml:"env" validate:"required,oneof=dev development prod production"`
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
	Service   ServiceConfig             `mapstructure:"service" yaml:"service"`
	Database  database.Config           `mapstructure:"database" yaml:"database"`
	Storage   StorageConfig             `mapstructure:"storage" yaml:"storage"`
	Upload    UploadConfig              `mapstructure:"upload" yaml:"upload"`
	Admin     keybackend.KeysConfig     `mapstructure:"admin" yaml:"admin"`
	CORS      storefronthttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit" yaml:"rate_limit"`
	Log       LogConfig                 `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	StaticPrefix    string `mapstructure:"static_prefix" yaml:"static_prefix" validate:"required,startswith=/"`
	MaxBodySize     int64  `mapstructure:"max_body_size" yaml:"max_body_size" validate:"min=1"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=1"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	// CleanupTimeout bounds a promotion that outlives its request, in seconds.
	CleanupTimeout int `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout" validate:"min=1"`
	// PromoteBatch is how many products `storefront promote` handles per batch.
	PromoteBatch int `mapstructure:"promote_batch" yaml:"promote_batch" validate:"min=1,max=1000"`
}

// StorageConfig locates the asset root and the upload subtrees below it.
type StorageConfig struct {
	// ServerRoot anchors PublicDir.
	ServerRoot string `mapstructure:"server_root" yaml:"server_root" validate:"required"`
	// PublicDir is the asset root, relative to ServerRoot.
	PublicDir string `mapstructure:"public_dir" yaml:"public_dir" validate:"required"`
	// UploadPath is the permanent subtree, relative to the asset root.
	UploadPath string `mapstructure:"upload_path" yaml:"upload_path" validate:"required"`
	// UploadPathTemp is the temporary subtree, relative to the asset root.
	UploadPathTemp string `mapstructure:"upload_path_temp" yaml:"upload_path_temp" validate:"required,nefield=UploadPath"`
}

// UploadConfig holds the upload gate limits.
type UploadConfig struct {
	MinSize      int64    `mapstructure:"min_size" yaml:"min_size" validate:"min=1"`
	MaxSize      int64    `mapstructure:"max_size" yaml:"max_size" validate:"min=1,gtefield=MinSize"`
	AllowedTypes []string `mapstructure:"allowed_types" yaml:"allowed_types" validate:"min=1,dive,required"`
	SniffContent bool     `mapstructure:"sniff_content" yaml:"sniff_content"`
}

// RateLimitConfig holds the per-client request limits.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"min=1"`
	TrustProxyHeaders bool    `mapstructure:"trust_proxy_headers" yaml:"trust_proxy_headers"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// Paths are the storage locations after resolution.
type Paths struct {
	// AssetRoot is the absolute asset root.
	AssetRoot string
	// TempDir and PermDir are slash-separated and relative to AssetRoot.
	TempDir string
	PermDir string
}

// Resolve canonicalizes the server root and resolves the asset root and both
// upload subtrees with storefront.ResolvePath, so none of them can point
// outside the directory that contains it.
func (s StorageConfig) Resolve() (Paths, error) {
	serverRoot, err := storefront.CanonicalRoot(s.ServerRoot)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve storage: %w", err)
	}

	assetRoot, err := storefront.ResolvePath(serverRoot, s.PublicDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve storage: public_dir %q: %w", s.PublicDir, err)
	}

	temp, err := subtree(assetRoot, s.UploadPathTemp)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve storage: upload_path_temp %q: %w", s.UploadPathTemp, err)
	}
	perm, err := subtree(assetRoot, s.UploadPath)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve storage: upload_path %q: %w", s.UploadPath, err)
	}
	if temp == perm {
		return Paths{}, fmt.Errorf("resolve storage: %w: upload paths must differ", storefront.ErrInvalidInput)
	}

	return Paths{AssetRoot: assetRoot, TempDir: temp, PermDir: perm}, nil
}

func subtree(root, dir string) (string, error) {
	abs, err := storefront.ResolvePath(root, dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", storefront.ErrPathRejected, err)
	}
	return filepath.ToSlash(rel), nil
}

// CleanupTimeout returns Service.CleanupTimeout as a duration.
func (c *Config) CleanupTimeout() time.Duration {
	return time.Duration(c.Service.CleanupTimeout) * time.Second
}

// ShutdownTimeout returns Server.ShutdownTimeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// IsProd reports whether the config selects production behavior.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"env":          "env",
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"server-root":  "storage.server_root",
	"public-dir":   "storage.public_dir",
	"port":         "server.port",
	"auto-migrate": "database.auto_migrate",
	"log-level":    "log.level",
	"batch":        "service.promote_batch",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5708)
	v.SetDefault("server.static_prefix", "/")
	v.SetDefault("server.max_body_size", storefronthttp.DefaultMaxBodyBytes)
	v.SetDefault("server.shutdown_timeout", 30) // seconds

	v.SetDefault("service.cleanup_timeout", 30) // seconds
	v.SetDefault("service.promote_batch", 100)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "storefront.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.products", "products")
	v.SetDefault("database.tables.customers", "customers")
	v.SetDefault("database.tables.orders", "orders")

	v.SetDefault("storage.server_root", ".")
	v.SetDefault("storage.public_dir", "public")
	v.SetDefault("storage.upload_path", "images")
	v.SetDefault("storage.upload_path_temp", "temp")

	v.SetDefault("upload.min_size", storefront.DefaultMinUploadBytes)
	v.SetDefault("upload.max_size", storefront.DefaultMaxUploadBytes)
	v.SetDefault("upload.allowed_types", storefront.DefaultUploadTypes)
	v.SetDefault("upload.sniff_content", true)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.trust_proxy_headers", false)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "POST", "PATCH", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})

	v.SetDefault("log.level", "info")
}

// bindEnv maps environment variables onto keys. The STOREFRONT_ form is
// preferred; the unprefixed names are kept for existing deployments.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("storage.upload_path", EnvPrefix+"_STORAGE_UPLOAD_PATH", "UPLOAD_PATH")
	_ = v.BindEnv("storage.upload_path_temp", EnvPrefix+"_STORAGE_UPLOAD_PATH_TEMP", "UPLOAD_PATH_TEMP")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	bindEnv(v)

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, err := cfg.Storage.Resolve(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// HandlerConfig builds the HTTP handler configuration. verifier guards the
// admin routes.
func (c *Config) HandlerConfig(verifier storefronthttp.KeyVerifier) storefronthttp.HandlerConfig {
	return storefronthttp.HandlerConfig{
		StaticPrefix: c.Server.StaticPrefix,
		MaxBodyBytes: c.Server.MaxBodySize,
		Admin:        verifier,
		CORS:         c.CORS,
		RateLimit: storefronthttp.RateLimitConfig{
			Enabled:           c.RateLimit.Enabled,
			RequestsPerSecond: c.RateLimit.RequestsPerSecond,
			Burst:             c.RateLimit.Burst,
			TrustProxyHeaders: c.RateLimit.TrustProxyHeaders,
		},
	}
}

// UploadGateConfig builds the upload gate configuration for the resolved temp dir.
func (c *Config) UploadGateConfig(paths Paths) storefront.UploadConfig {
	return storefront.UploadConfig{
		TempDir:      paths.TempDir,
		MinBytes:     c.Upload.MinSize,
		MaxBytes:     c.Upload.MaxSize,
		AllowedTypes: c.Upload.AllowedTypes,
		SniffContent: c.Upload.SniffContent,
	}
}
