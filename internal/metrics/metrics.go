package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Route kinds used as the "kind" label.
const (
	KindBroadcast = "broadcast"
	KindDirected  = "directed"
)

// Metrics holds the relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	OnlineConnections   prometheus.Gauge
	RetainedOffline     prometheus.Gauge
	MessagesRouted      *prometheus.CounterVec
	Deliveries          prometheus.Counter
	DeliveriesDropped   prometheus.Counter
	PersistenceFailures prometheus.Counter
	SeenAcks            prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wirerelay_online_connections",
			Help: "Current number of online connections",
		}),
		RetainedOffline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wirerelay_retained_offline_connections",
			Help: "Offline connection records kept for display-name lookups",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wirerelay_messages_routed_total",
			Help: "Messages persisted and fanned out, by kind",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirerelay_deliveries_total",
			Help: "Events queued to connections",
		}),
		DeliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirerelay_deliveries_dropped_total",
			Help: "Events dropped because a connection's send queue was full",
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirerelay_persistence_failures_total",
			Help: "Store calls that failed while routing or acknowledging",
		}),
		SeenAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirerelay_seen_acks_total",
			Help: "Messages transitioned to seen",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OnlineConnections,
			m.RetainedOffline,
			m.MessagesRouted,
			m.Deliveries,
			m.DeliveriesDropped,
			m.PersistenceFailures,
			m.SeenAcks,
		)
	}
	return m
}

func (m *Metrics) SetPresence(online, offline int) {
	if m == nil {
		return
	}
	m.OnlineConnections.Set(float64(online))
	m.RetainedOffline.Set(float64(offline))
}

func (m *Metrics) MessageRouted(kind string) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Deliveries.Add(float64(n))
}

func (m *Metrics) Dropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DeliveriesDropped.Add(float64(n))
}

func (m *Metrics) PersistenceFailed() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

func (m *Metrics) Seen() {
	if m == nil {
		return
	}
	m.SeenAcks.Inc()
}
