// Package http provides the HTTP surface of the storefront.
//
// It serves static assets from the asset root, accepts image uploads, and
// exposes JSON routes for products, customers and orders backed by a Catalog.
//
// # Routes
//
//	GET    /<prefix>/*             static assets (StaticMiddleware)
//	GET    /healthz                liveness
//	GET    /metrics                Prometheus counters
//	GET    /products               list, with filters from the query string
//	GET    /products/{id}
//	POST   /upload                 admin; multipart field "file"
//	POST   /products               admin
//	PATCH  /products/{id}          admin
//	DELETE /products/{id}          admin
//	GET    /customers              admin; list
//	POST   /customers              admin
//	GET    /customers/{id}         admin
//	PATCH  /customers/{id}         admin
//	DELETE /customers/{id}         admin; removes the customer's orders too
//	POST   /customers/{id}/orders  admin
//	GET    /orders                 admin; list
//	GET    /orders/{orderNumber}   admin
//
// # Static assets
//
// StaticMiddleware runs before routing. It hands the still-escaped request
// path to an AssetOpener, so encoded traversal such as %2e%2e%2f is judged
// by the resolver rather than silently decoded by the router. Rejected paths
// get 403 with {"error":"access_denied"}; missing files fall through to the
// API routes.
//
// # Request bodies
//
// JSON bodies are capped by BodyLimit, decoded into a storefront.Value,
// stripped of operator and field-path keys, and only then decoded into the
// typed input structs. Query strings for list routes go through
// storefront.FromQuery and the list endpoint's whitelist.
//
// # Authentication
//
// Admin routes take HTTP basic credentials checked by a KeyVerifier:
//
//	store, _ := keybackend.NewKeyStore(cfg.Admin)
//	handler := http.NewHandler(&http.HandlerConfig{
//	    StaticPrefix: "/",
//	    Admin:        store,
//	}, catalog, assets, uploads, http.NewMetrics())
//	http.ListenAndServe(":8080", handler.Router())
//
// # Errors
//
// Every error is a JSON {"error", "message"} envelope written by HandleError,
// which maps storefront sentinel errors to status codes.
package http
