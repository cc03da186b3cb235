// Package metrics exposes Prometheus instrumentation for live subscriptions,
// remote commands and WebSocket clients.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "awardswithfriends"

// Metrics holds every collector the service records to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	activeSubscriptions *prometheus.GaugeVec
	snapshots           *prometheus.CounterVec
	memberFailures      *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	wsClients           *prometheus.GaugeVec
}

// New creates a Metrics instance on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		activeSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Live query listeners currently open, by query.",
		}, []string{"query"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots received from live queries, by query.",
		}, []string{"query"}),
		memberFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_failures_total",
			Help:      "Failed member subscriptions swallowed by list aggregation, by aggregate.",
		}, []string{"aggregate"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Remote command latency, by function and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function", "outcome"}),
		wsClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients, by view.",
		}, []string{"view"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeSubscriptions,
		m.snapshots,
		m.memberFailures,
		m.commandDuration,
		m.wsClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) SubscriptionOpened(query string) {
	if m != nil {
		m.activeSubscriptions.WithLabelValues(query).Inc()
	}
}

func (m *Metrics) SubscriptionClosed(query string) {
	if m != nil {
		m.activeSubscriptions.WithLabelValues(query).Dec()
	}
}

func (m *Metrics) SnapshotReceived(query string) {
	if m != nil {
		m.snapshots.WithLabelValues(query).Inc()
	}
}

func (m *Metrics) MemberFailed(aggregate string) {
	if m != nil {
		m.memberFailures.WithLabelValues(aggregate).Inc()
	}
}

// ObserveCommand records one remote command call
func (m *Metrics) ObserveCommand(function string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commandDuration.WithLabelValues(function, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ClientConnected(view string) {
	if m != nil {
		m.wsClients.WithLabelValues(view).Inc()
	}
}

func (m *Metrics) ClientDisconnected(view string) {
	if m != nil {
		m.wsClients.WithLabelValues(view).Dec()
	}
}
