// Package metrics exposes authentication outcome counters and HTTP latency
// histograms on a private Prometheus registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
)

// Recorder receives one event per finished session operation.
type Recorder interface {
	AuthEvent(event string, err error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) AuthEvent(string, error) {}

type Metrics struct {
	registry     *prometheus.Registry
	authEvents   *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "account_auth_events_total",
			Help: "Session operations by event and outcome.",
		}, []string{"event", "outcome"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "account_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// AuthEvent counts event with an outcome derived from err.
func (m *Metrics) AuthEvent(event string, err error) {
	m.authEvents.WithLabelValues(event, Outcome(err)).Inc()
}

// ObserveHTTP records one request's latency.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome is the label value for err.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperr.ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, apperr.ErrTokenReuse):
		return "token_reuse"
	case errors.Is(err, apperr.ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
