package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	storefronthttp "github.com/sagarc03/storefront/http"
	"github.com/sagarc03/storefront/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	wrapped := storefronthttp.SecurityHeaders(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.NotEmpty(t, rec.Header().Get("Permissions-Policy"))
}

func TestBodyLimit(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			storefronthttp.HandleError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	wrapped := storefronthttp.BodyLimit(16)(echo)

	t.Run("within limit", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":1}`))
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("declared too large", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 17)))
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("streamed too large", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	store := keybackend.NewMapKeyStore(map[string]string{"admin": "s3cret"})

	tests := []struct {
		name     string
		verifier storefronthttp.KeyVerifier
		user     string
		pass     string
		setAuth  bool
		wantCode int
	}{
		{name: "valid credentials", verifier: store, user: "admin", pass: "s3cret", setAuth: true, wantCode: http.StatusOK},
		{name: "missing credentials", verifier: store, wantCode: http.StatusUnauthorized},
		{name: "wrong secret", verifier: store, user: "admin", pass: "nope", setAuth: true, wantCode: http.StatusUnauthorized},
		{name: "unknown key", verifier: store, user: "other", pass: "s3cret", setAuth: true, wantCode: http.StatusUnauthorized},
		{name: "no verifier", verifier: nil, user: "admin", pass: "s3cret", setAuth: true, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := storefronthttp.AdminOnly(tt.verifier, nil)(okHandler())

			req := httptest.NewRequest("GET", "/customers", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
				assert.Contains(t, rec.Body.String(), "unauthorized")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := storefronthttp.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	wrapped := storefronthttp.RateLimit(cfg, storefronthttp.NewMetrics())(okHandler())

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest("GET", "/products", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5678", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234", ""))

	// Proxy headers are ignored unless trusted.
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234", "203.0.113.9"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234", ""))
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	cfg := storefronthttp.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1, TrustProxyHeaders: true}
	wrapped := storefronthttp.RateLimit(cfg, nil)(okHandler())

	send := func(forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("203.0.113.9, 10.0.0.1").Code)
	limited := send("203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send("203.0.113.10").Code)
}
