package socketio

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "socketio_client"

// metrics holds the Prometheus collectors for one client. A nil *metrics
// records nothing.
type metrics struct {
	reg  prometheus.Registerer
	once sync.Once

	packetsSent       *prometheus.CounterVec
	packetsReceived   *prometheus.CounterVec
	malformedPackets  prometheus.Counter
	heartbeatFailures prometheus.Counter
	pendingAcks       prometheus.Gauge
}

// newMetrics registers the client's collectors with reg. Each client is
// told apart by a client_id constant label so several clients can share a
// registry.
func newMetrics(reg prometheus.Registerer, clientID string) *metrics {
	if reg == nil {
		return nil
	}

	factory := promauto.With(reg)
	labels := prometheus.Labels{"client_id": clientID}

	return &metrics{
		reg: reg,

		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_sent_total",
			Help:        "Packets written to the transport, by packet code",
			ConstLabels: labels,
		}, []string{"code"}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_received_total",
			Help:        "Packets decoded from the transport, by packet code",
			ConstLabels: labels,
		}, []string{"code"}),

		malformedPackets: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "malformed_packets_total",
			Help:        "Frames dropped because they could not be decoded",
			ConstLabels: labels,
		}),

		heartbeatFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "heartbeat_failures_total",
			Help:        "Heartbeats that could not be written",
			ConstLabels: labels,
		}),

		pendingAcks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "pending_acks",
			Help:        "Acknowledgment callbacks waiting for a reply",
			ConstLabels: labels,
		}),
	}
}

// unregister removes the client's collectors from the registry so a closed
// client leaves no series behind. Only the first call has an effect.
func (m *metrics) unregister() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		for _, c := range []prometheus.Collector{
			m.packetsSent,
			m.packetsReceived,
			m.malformedPackets,
			m.heartbeatFailures,
			m.pendingAcks,
		} {
			m.reg.Unregister(c)
		}
	})
}

func (m *metrics) sent(code PacketCode) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(code.String()).Inc()
}

func (m *metrics) received(code PacketCode) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(code.String()).Inc()
}

func (m *metrics) malformed() {
	if m == nil {
		return
	}
	m.malformedPackets.Inc()
}

func (m *metrics) heartbeatFailed() {
	if m == nil {
		return
	}
	m.heartbeatFailures.Inc()
}

func (m *metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pendingAcks.Set(float64(n))
}
