// File: control/metrics.go
//
// Prometheus metrics for the transport and distributor layers.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the counters exported by one process. All fields
// are safe for concurrent use; a nil *Metrics disables collection at
// every call site.
type Metrics struct {
	ConnAccepted  prometheus.Counter
	ConnClosed    prometheus.Counter
	Handoffs      *prometheus.CounterVec
	HandoffErrors prometheus.Counter
	WorkerDeaths  prometheus.Counter
	BytesIn       prometheus.Counter
	BytesOut      prometheus.Counter
	Compactions   prometheus.Counter
	ShortWrites   prometheus.Counter
}

// NewMetrics registers the counter set with reg. Passing
// prometheus.DefaultRegisterer wires them into the default exposition.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_connections_accepted_total",
			Help: "Connections accepted by the listening socket.",
		}),
		ConnClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_connections_closed_total",
			Help: "Data sources torn down.",
		}),
		Handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripc_handoffs_total",
			Help: "Connections handed to each worker process.",
		}, []string{"worker"}),
		HandoffErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_handoff_errors_total",
			Help: "Handoff attempts that failed and dropped the connection.",
		}),
		WorkerDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_worker_deaths_total",
			Help: "Worker processes that exited.",
		}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_bytes_in_total",
			Help: "Bytes read from connections into read buffers.",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_bytes_out_total",
			Help: "Bytes acknowledged as written to connections.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_buffer_compactions_total",
			Help: "Ring buffer rewind operations.",
		}),
		ShortWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripc_short_writes_total",
			Help: "Buffer writes truncated by backpressure.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ConnAccepted, m.ConnClosed, m.Handoffs, m.HandoffErrors,
			m.WorkerDeaths, m.BytesIn, m.BytesOut, m.Compactions, m.ShortWrites,
		)
	}
	return m
}

// Helpers tolerate a nil receiver so call sites need no guards.

// AddBytesIn records n bytes received.
func (m *Metrics) AddBytesIn(n int) {
	if m != nil && n > 0 {
		m.BytesIn.Add(float64(n))
	}
}

// AddBytesOut records n bytes sent.
func (m *Metrics) AddBytesOut(n int) {
	if m != nil && n > 0 {
		m.BytesOut.Add(float64(n))
	}
}

// IncCompaction records one buffer rewind.
func (m *Metrics) IncCompaction() {
	if m != nil {
		m.Compactions.Inc()
	}
}

// IncShortWrite records one truncated buffer write.
func (m *Metrics) IncShortWrite() {
	if m != nil {
		m.ShortWrites.Inc()
	}
}

// IncAccepted records one accepted connection.
func (m *Metrics) IncAccepted() {
	if m != nil {
		m.ConnAccepted.Inc()
	}
}

// IncClosed records one closed data source.
func (m *Metrics) IncClosed() {
	if m != nil {
		m.ConnClosed.Inc()
	}
}
