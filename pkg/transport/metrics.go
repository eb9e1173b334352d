package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal seam every session/server reports through:
// a small struct of pre-created vectors, built once and threaded through
// by pointer so hot-path code never touches the registry at call time.
type metricsSink struct {
	sessionsTotal   *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	bytesSent       prometheus.Counter
	bytesReceived   prometheus.Counter
	sendErrors      *prometheus.CounterVec
}

var nopMetrics = &metricsSink{}

// NewMetrics builds a metricsSink registered against reg, namespaced by
// name (typically the server's protocol: "tcp", "tls", "udp", "http",
// "websocket"). Pass a nil reg to use prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, name string) *metricsSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &metricsSink{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Subsystem: name,
			Name:      "sessions_total",
			Help:      "Sessions created, labeled by outcome.",
		}, []string{"outcome"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcore",
			Subsystem: name,
			Name:      "sessions_active",
			Help:      "Currently connected sessions.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcore",
			Subsystem: name,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the wire.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcore",
			Subsystem: name,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the wire.",
		}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Subsystem: name,
			Name:      "send_errors_total",
			Help:      "Failed Send/SendAsync calls, labeled by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.sessionsTotal, m.sessionsActive, m.bytesSent, m.bytesReceived, m.sendErrors)
	return m
}

func (m *metricsSink) connected() {
	if m == nil || m.sessionsTotal == nil {
		return
	}
	m.sessionsTotal.WithLabelValues("connected").Inc()
	m.sessionsActive.Inc()
}

func (m *metricsSink) disconnected() {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *metricsSink) sent(n int) {
	if m == nil || m.bytesSent == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

func (m *metricsSink) received(n int) {
	if m == nil || m.bytesReceived == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *metricsSink) sendError(kind ErrorKind) {
	if m == nil || m.sendErrors == nil {
		return
	}
	m.sendErrors.WithLabelValues(kind.String()).Inc()
}

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}
