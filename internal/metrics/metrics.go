// Package metrics exposes the service's prometheus counters. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeExisting = "existing"
	OutcomeCreated  = "created"
	OutcomeAdopted  = "adopted"

	RefreshOK    = "ok"
	RefreshStale = "stale"
	RefreshError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	placements        *prometheus.CounterVec
	bootstrapFailures prometheus.Counter
	subfolderFailures prometheus.Counter
	registryRefreshes *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshard_placements_total",
			Help: "Tenant placements served, by outcome",
		}, []string{"outcome"}),
		bootstrapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidshard_bootstrap_failures_total",
			Help: "Root collection creations that failed",
		}),
		subfolderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidshard_subfolder_failures_total",
			Help: "Default subfolder creations that failed and were skipped",
		}),
		registryRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshard_registry_refresh_total",
			Help: "Shard registry refreshes, by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshard_http_requests_total",
			Help: "HTTP server's handled requests",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(m.placements)
	reg.MustRegister(m.bootstrapFailures)
	reg.MustRegister(m.subfolderFailures)
	reg.MustRegister(m.registryRefreshes)
	reg.MustRegister(m.httpRequests)

	return m
}

func (m *Metrics) Placement(outcome string) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BootstrapFailure() {
	if m == nil {
		return
	}
	m.bootstrapFailures.Inc()
}

func (m *Metrics) SubfolderFailure() {
	if m == nil {
		return
	}
	m.subfolderFailures.Inc()
}

func (m *Metrics) RegistryRefresh(result string) {
	if m == nil {
		return
	}
	m.registryRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WrapHTTPServer counts every request handled by actual.
func (m *Metrics) WrapHTTPServer(actual http.Handler) http.Handler {
	if m == nil {
		return actual
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := httpsnoop.CaptureMetrics(actual, w, r)

		m.httpRequests.With(prometheus.Labels{
			"code":   strconv.Itoa(stats.Code),
			"method": r.Method,
		}).Inc()
	})
}
