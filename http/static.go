package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/storefront"
)

// svgPolicy stops scripts embedded in uploaded SVG files from running when
// the file is opened directly.
const svgPolicy = "default-src 'none'; style-src 'unsafe-inline'; sandbox"

// AssetOpener opens files below the asset root.
type AssetOpener interface {
	// Open resolves requestPath against the asset root.
	//
	// Returns:
	//   - error: ErrPathRejected for paths that escape the root or are
	//     malformed, ErrNotFound for missing files, directories and the root
	Open(ctx context.Context, requestPath string) (storefront.Asset, error)
}

// StaticMiddleware serves files from assets for GET and HEAD requests below
// prefix. Requests for missing files fall through to next so API routes can
// share the prefix. Rejected paths get 403 and never reach next.
func StaticMiddleware(assets AssetOpener, prefix string, metrics *Metrics) func(http.Handler) http.Handler {
	prefix = normalizePrefix(prefix)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			// The escaped form keeps %2f and %2e intact for the resolver to judge.
			escaped := r.URL.EscapedPath()
			if !strings.HasPrefix(escaped, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			asset, err := assets.Open(r.Context(), strings.TrimPrefix(escaped, prefix))
			switch {
			case err == nil:
			case errors.Is(err, storefront.ErrNotFound):
				next.ServeHTTP(w, r)
				return
			case errors.Is(err, storefront.ErrPathRejected):
				metrics.pathRejected()
				slog.Warn("static path rejected",
					"path", escaped,
					"remote", r.RemoteAddr,
					"error", err,
				)
				WriteError(w, http.StatusForbidden, "access_denied", "access denied")
				return
			default:
				HandleError(w, err)
				return
			}
			defer func() { _ = asset.Content.Close() }()

			w.Header().Set("Content-Type", asset.ContentType)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
			if strings.HasPrefix(asset.ContentType, "image/svg+xml") {
				w.Header().Set("Content-Security-Policy", svgPolicy)
			}

			http.ServeContent(w, r, asset.Name, asset.ModTime, asset.Content)
		})
	}
}

// normalizePrefix returns prefix with a leading and a trailing slash.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix + "/"
}
