package mqclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is an ambient instrumentation collaborator. It is not
// excluded by any non-goal in spec.md §1 (unlike persistence or
// clustering), so a concrete Prometheus-backed implementation ships
// alongside the no-op default, grounded on
// ZindGH-MQTT-Server/internal/metrics/metrics.go's counter/gauge
// layout.
type Recorder interface {
	PacketSent(packetType string)
	PacketReceived(packetType string)
	Retransmit(packetType string)

	// PendingGauge reports the current size of a pending-state
	// collection (kind is "publish" or "unsubscribe") every time it
	// changes, matching ZindGH-MQTT-Server/internal/metrics/metrics.go's
	// QoSMessagesInflight gauge.
	PendingGauge(kind string, count int)
}

// NopRecorder discards every observation. It is the default when no
// Recorder is supplied.
type NopRecorder struct{}

func (NopRecorder) PacketSent(string)        {}
func (NopRecorder) PacketReceived(string)    {}
func (NopRecorder) Retransmit(string)        {}
func (NopRecorder) PendingGauge(string, int) {}

// PrometheusRecorder records packet counts as Prometheus counters
// labeled by packet type and direction, and in-flight pending state as
// a gauge labeled by kind.
type PrometheusRecorder struct {
	sent       *prometheus.CounterVec
	received   *prometheus.CounterVec
	retransmit *prometheus.CounterVec
	pending    *prometheus.GaugeVec
}

// NewPrometheusRecorder registers its counters with reg (or the
// default registerer if reg is nil) and returns a ready Recorder.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &PrometheusRecorder{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqclient",
			Name:      "packets_sent_total",
			Help:      "Total MQTT control packets sent, by packet type.",
		}, []string{"packet_type"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqclient",
			Name:      "packets_received_total",
			Help:      "Total MQTT control packets received, by packet type.",
		}, []string{"packet_type"}),
		retransmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqclient",
			Name:      "retransmits_total",
			Help:      "Total retransmitted packets, by packet type.",
		}, []string{"packet_type"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mqclient",
			Name:      "pending_total",
			Help:      "Current number of in-flight pending records awaiting acknowledgement, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(r.sent, r.received, r.retransmit, r.pending)
	return r
}

func (r *PrometheusRecorder) PacketSent(packetType string)     { r.sent.WithLabelValues(packetType).Inc() }
func (r *PrometheusRecorder) PacketReceived(packetType string) { r.received.WithLabelValues(packetType).Inc() }
func (r *PrometheusRecorder) Retransmit(packetType string) {
	r.retransmit.WithLabelValues(packetType).Inc()
}
func (r *PrometheusRecorder) PendingGauge(kind string, count int) {
	r.pending.WithLabelValues(kind).Set(float64(count))
}
