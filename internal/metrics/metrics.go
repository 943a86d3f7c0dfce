// Package metrics holds the prometheus collectors for presence and fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Connections prometheus.Gauge
	Users       prometheus.Gauge
	Evictions   prometheus.Counter
	Sweeps      prometheus.Counter
	Broadcasts  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg skips
// registration, which keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crm_presence_connections",
			Help: "Realtime connections currently tracked as present.",
		}),
		Users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crm_presence_users",
			Help: "Distinct user identities currently present.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_presence_evictions_total",
			Help: "Connections evicted by the liveness sweeper.",
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_sweeps_total",
			Help: "Completed liveness sweep cycles.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_broadcast_messages_total",
			Help: "Messages fanned out to realtime clients, by event name.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Users, m.Evictions, m.Sweeps, m.Broadcasts)
	}
	return m
}

// SetPresence records the current connection and distinct user counts.
func (m *Metrics) SetPresence(connections, users int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(connections))
	m.Users.Set(float64(users))
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.Add(float64(n))
}

func (m *Metrics) Swept() {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
}

func (m *Metrics) Broadcast(event string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(event).Inc()
}
