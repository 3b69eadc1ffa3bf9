// Package metrics holds the Prometheus collectors exported on /metrics.
//
// Every component receives the same *Metrics and records into it. A nil
// *Metrics is valid and records nothing, so tests and CLI commands can pass
// nil instead of building a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snippetshare"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Accounts
	RegistrationsTotal  *prometheus.CounterVec
	LoginsTotal         *prometheus.CounterVec
	PasswordResetsTotal *prometheus.CounterVec

	// Snippets
	SnippetsCreatedTotal prometheus.Counter
	HighlightDuration    prometheus.Histogram

	// Mail
	EmailsTotal     *prometheus.CounterVec
	MailQueueLength prometheus.Gauge

	// Janitor
	PurgedRowsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, with registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Accounts created, by method (password or github)",
			},
			[]string{"method"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		PasswordResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_resets_total",
				Help:      "Password reset steps by stage (requested, completed)",
			},
			[]string{"stage"},
		),
		SnippetsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snippets_created_total",
				Help:      "Snippets created",
			},
		),
		HighlightDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "highlight_duration_seconds",
				Help:      "Time spent rendering highlighted HTML",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_total",
				Help:      "Outbound emails by result (sent, failed, dropped)",
			},
			[]string{"result"},
		),
		MailQueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mail_queue_length",
				Help:      "Messages waiting in the mail queue",
			},
		),
		PurgedRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purged_rows_total",
				Help:      "Expired rows removed by the janitor, by table",
			},
			[]string{"table"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RegistrationsTotal,
		m.LoginsTotal,
		m.PasswordResetsTotal,
		m.SnippetsCreatedTotal,
		m.HighlightDuration,
		m.EmailsTotal,
		m.MailQueueLength,
		m.PurgedRowsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// ObserveHTTP records one finished request. route is the matched route
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Registration(method string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PasswordReset(stage string) {
	if m == nil {
		return
	}
	m.PasswordResetsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) SnippetCreated() {
	if m == nil {
		return
	}
	m.SnippetsCreatedTotal.Inc()
}

func (m *Metrics) ObserveHighlight(d time.Duration) {
	if m == nil {
		return
	}
	m.HighlightDuration.Observe(d.Seconds())
}

func (m *Metrics) Email(result string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetMailQueueLength(n int) {
	if m == nil {
		return
	}
	m.MailQueueLength.Set(float64(n))
}

func (m *Metrics) Purged(table string, n int64) {
	if m == nil {
		return
	}
	m.PurgedRowsTotal.WithLabelValues(table).Add(float64(n))
}
