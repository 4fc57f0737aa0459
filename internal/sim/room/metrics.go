package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by all rooms; series are labelled by room id. A zero
// registerer yields a no-op instance so the sim never branches on nil.
type Metrics struct {
	tickSeconds  *prometheus.HistogramVec
	eventsTotal  *prometheus.CounterVec
	entities     *prometheus.GaugeVec
	pendingCasts *prometheus.GaugeVec

	roomID string
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		tickSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tileworld_room_tick_seconds",
			Help:    "Wall time of one simulation tick.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}, []string{"room"}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tileworld_room_events_total",
			Help: "Envelopes appended to room event logs.",
		}, []string{"room", "type"}),
		entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tileworld_room_entities",
			Help: "Entities currently registered in a room.",
		}, []string{"room"}),
		pendingCasts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tileworld_room_pending_casts",
			Help: "Casts awaiting resolution in a room.",
		}, []string{"room"}),
	}
}

// ForRoom binds the shared collectors to one room's label.
func (m *Metrics) ForRoom(roomID string) *Metrics {
	if m == nil {
		return noopMetrics()
	}
	bound := *m
	bound.roomID = roomID
	return &bound
}

func noopMetrics() *Metrics { return NewMetrics(nil).ForRoom("") }

func (m *Metrics) TickObserved(seconds float64) {
	m.tickSeconds.WithLabelValues(m.roomID).Observe(seconds)
}

func (m *Metrics) EventAppended(eventType string) {
	m.eventsTotal.WithLabelValues(m.roomID, eventType).Inc()
}

func (m *Metrics) Entities(n int) {
	m.entities.WithLabelValues(m.roomID).Set(float64(n))
}

func (m *Metrics) PendingCasts(n int) {
	m.pendingCasts.WithLabelValues(m.roomID).Set(float64(n))
}
