package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/storefront"
)

const metricsNamespace = "storefront"

// Metrics counts the security relevant outcomes of the request surface.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	pathRejections    prometheus.Counter
	uploadsAccepted   prometheus.Counter
	uploadRejections  *prometheus.CounterVec
	promotionFailures prometheus.Counter
	rateLimited       prometheus.Counter
	authFailures      prometheus.Counter
}

// NewMetrics creates the counters on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pathRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "static_path_rejections_total",
			Help:      "Static asset requests refused because the path escaped the asset root or was malformed.",
		}),
		uploadsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_accepted_total",
			Help:      "Uploads staged under the temporary directory.",
		}),
		uploadRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upload_rejections_total",
			Help:      "Uploads refused by the upload gate, by reason.",
		}, []string{"reason"}),
		promotionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "promotion_failures_total",
			Help:      "Product writes whose image could not be moved to permanent storage.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests refused by the per-client rate limiter.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "admin_auth_failures_total",
			Help:      "Admin requests with missing or invalid credentials.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pathRejections,
		m.uploadsAccepted,
		m.uploadRejections,
		m.promotionFailures,
		m.rateLimited,
		m.authFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) pathRejected() {
	if m != nil {
		m.pathRejections.Inc()
	}
}

func (m *Metrics) uploadAccepted() {
	if m != nil {
		m.uploadsAccepted.Inc()
	}
}

func (m *Metrics) uploadRejected(reason storefront.RejectReason) {
	if m != nil {
		m.uploadRejections.WithLabelValues(string(reason)).Inc()
	}
}

func (m *Metrics) promotionFailed() {
	if m != nil {
		m.promotionFailures.Inc()
	}
}

func (m *Metrics) limited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) authFailed() {
	if m != nil {
		m.authFailures.Inc()
	}
}
