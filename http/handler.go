package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSConfig configures the go-chi/cors middleware.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// HandlerConfig holds the settings the router is built from.
type HandlerConfig struct {
	// StaticPrefix is the URL prefix the asset root is served under.
	StaticPrefix string
	// MaxBodyBytes caps JSON request bodies (default DefaultMaxBodyBytes).
	MaxBodyBytes int64
	// Admin guards uploads, product writes and every customer route.
	// Nil rejects all admin requests.
	Admin     KeyVerifier
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// Handler wires the storefront routes together.
type Handler struct {
	config  HandlerConfig
	catalog Catalog
	assets  AssetOpener
	uploads Uploader
	metrics *Metrics
}

// NewHandler creates a new Handler. A nil metrics records nothing and
// disables GET /metrics.
func NewHandler(config *HandlerConfig, catalog Catalog, assets AssetOpener, uploads Uploader, metrics *Metrics) *Handler {
	return &Handler{
		config:  *config,
		catalog: catalog,
		assets:  assets,
		uploads: uploads,
		metrics: metrics,
	}
}

// Router returns an http.Handler with all routes configured.
// Static assets are matched before any API route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.RateLimit.Enabled {
		r.Use(RateLimit(h.config.RateLimit, h.metrics))
	}

	r.Use(StaticMiddleware(h.assets, h.config.StaticPrefix, h.metrics))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Get("/products", h.handleListProducts)
	r.Get("/products/{id}", h.handleGetProduct)

	r.Group(func(r chi.Router) {
		r.Use(AdminOnly(h.config.Admin, h.metrics))

		r.Post("/upload", h.handleUpload)

		r.Group(func(r chi.Router) {
			r.Use(BodyLimit(h.config.MaxBodyBytes))

			r.Post("/products", h.handleCreateProduct)
			r.Patch("/products/{id}", h.handleUpdateProduct)
			r.Delete("/products/{id}", h.handleDeleteProduct)

			r.Get("/customers", h.handleListCustomers)
			r.Post("/customers", h.handleCreateCustomer)
			r.Get("/customers/{id}", h.handleGetCustomer)
			r.Patch("/customers/{id}", h.handleUpdateCustomer)
			r.Delete("/customers/{id}", h.handleDeleteCustomer)
			r.Post("/customers/{id}/orders", h.handleRecordOrder)

			r.Get("/orders", h.handleListOrders)
			r.Get("/orders/{orderNumber}", h.handleGetOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
