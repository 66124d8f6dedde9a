// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every steamhub collector.
type Metrics struct {
	watcherCycles   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	activeWatchers  prometheus.Gauge
	queryResponses  *prometheus.CounterVec
	queriesFinished *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		watcherCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamhub",
			Name:      "watcher_cycles_total",
			Help:      "Watcher alert cycles by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamhub",
			Name:      "watcher_notifications_total",
			Help:      "Watcher notifications by transition and delivery result.",
		}, []string{"transition", "result"}),
		activeWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "steamhub",
			Name:      "watchers_active",
			Help:      "Active watchers seen by the last cycle.",
		}),
		queryResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamhub",
			Name:      "query_responses_total",
			Help:      "Shard query responses written by this shard.",
		}, []string{"result"}),
		queriesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamhub",
			Name:      "queries_finished_total",
			Help:      "Coordinated queries by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.watcherCycles, m.notifications, m.activeWatchers, m.queryResponses, m.queriesFinished,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WatcherCycle counts one alert cycle ("ok" or "aborted").
func (m *Metrics) WatcherCycle(result string, active int) {
	if m == nil {
		return
	}
	m.watcherCycles.WithLabelValues(result).Inc()
	if result == "ok" {
		m.activeWatchers.Set(float64(active))
	}
}

// Notification counts one rendered notice ("delivered" or "failed").
func (m *Metrics) Notification(transition, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(transition, result).Inc()
}

// QueryResponse counts a response slot written by this shard ("ok" or "error").
func (m *Metrics) QueryResponse(result string) {
	if m == nil {
		return
	}
	m.queryResponses.WithLabelValues(result).Inc()
}

// QueryFinished counts a coordinated query ("completed", "timed_out" or "cancelled").
func (m *Metrics) QueryFinished(outcome string) {
	if m == nil {
		return
	}
	m.queriesFinished.WithLabelValues(outcome).Inc()
}
