package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics tracks websocket subscribers and delivered events.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	delivered   *prometheus.CounterVec
	dropped     prometheus.Counter
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Open realtime websocket connections.",
	})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Realtime events queued to subscribers, by event type.",
	}, []string{"type"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Realtime events dropped because a subscriber buffer was full.",
	})
	reg.MustRegister(connections, delivered, dropped)
	return &RealtimeMetrics{connections: connections, delivered: delivered, dropped: dropped}
}

func (r *RealtimeMetrics) Connected() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Inc()
}

func (r *RealtimeMetrics) Disconnected() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Dec()
}

func (r *RealtimeMetrics) Delivered(eventType string) {
	if r == nil || r.delivered == nil {
		return
	}
	r.delivered.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (r *RealtimeMetrics) Dropped() {
	if r == nil || r.dropped == nil {
		return
	}
	r.dropped.Inc()
}
