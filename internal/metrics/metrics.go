// Package metrics defines the Prometheus collectors exported by the chat
// server. A nil *Metrics is valid and records nothing, so components can be
// used without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "linechat"

// Broadcast kinds.
const (
	KindChat      = "chat"
	KindJoin      = "join"
	KindDeparture = "departure"
)

// Login results.
const (
	LoginOK       = "ok"
	LoginTaken    = "taken"
	LoginRejected = "bad"
)

// Metrics holds the server collectors.
type Metrics struct {
	connections     prometheus.Gauge
	users           prometheus.Gauge
	historyLines    prometheus.Gauge
	broadcasts      *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	logins          *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer; an empty namespace uses DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open client connections, registered or not",
		}),
		users: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_online",
			Help:      "Number of sessions holding a login",
		}),
		historyLines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_lines",
			Help:      "Number of chat lines held for replay",
		}),
		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast messages by kind",
		}, []string{"kind"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of per-session broadcast deliveries by result",
		}, []string{"result"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts by result",
		}, []string{"result"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_lines_total",
			Help:      "Total number of inbound lines discarded by the rate limiter",
		}, []string{"transport"}),
		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total number of unexpected read or write failures",
		}, []string{"transport"}),
	}
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed records a torn down connection.
func (m *Metrics) ConnectionClosed(wasRegistered bool) {
	if m == nil {
		return
	}
	m.connections.Dec()
	if wasRegistered {
		m.users.Dec()
	}
}

// Login records the outcome of a login attempt.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
	if result == LoginOK {
		m.users.Inc()
	}
}

// Broadcast records one broadcast and its per-session outcome.
func (m *Metrics) Broadcast(kind string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(kind).Inc()
	m.deliveries.WithLabelValues("delivered").Add(float64(delivered))
	m.deliveries.WithLabelValues("dropped").Add(float64(dropped))
}

// SetHistoryLines records the current history length.
func (m *Metrics) SetHistoryLines(n int) {
	if m == nil {
		return
	}
	m.historyLines.Set(float64(n))
}

// LineRateLimited records a discarded inbound line.
func (m *Metrics) LineRateLimited(transport string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(transport).Inc()
}

// TransportError records an unexpected transport failure.
func (m *Metrics) TransportError(transport string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(transport).Inc()
}
