// Package metrics holds the Prometheus collectors shared by the driver, the
// session manager and the hosts. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Quanta          prometheus.Counter
	QuantumSteps    prometheus.Histogram
	Runs            *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	Acquisitions    *prometheus.CounterVec
	InputRejected   prometheus.Counter
	StaleCallbacks  prometheus.Counter
	DiscardedChunks prometheus.Counter
	Connections     prometheus.Gauge
}

// New registers every collector on reg. Passing nil uses a private registry,
// which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Quanta: f.NewCounter(prometheus.CounterOpts{
			Name: "lina_quanta_total",
			Help: "Number of VM quanta executed",
		}),
		QuantumSteps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lina_quantum_steps",
			Help:    "Instructions executed per quantum",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 10000},
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lina_runs_total",
			Help: "Runs by final outcome",
		}, []string{"outcome"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "lina_sessions_active",
			Help: "Live VM handles",
		}),
		Acquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lina_session_acquisitions_total",
			Help: "VM handle acquisitions by result",
		}, []string{"result"}),
		InputRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "lina_input_rejected_total",
			Help: "Input lines submitted while no read was pending",
		}),
		StaleCallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "lina_stale_callbacks_total",
			Help: "Scheduled quanta that fired after their run was superseded",
		}),
		DiscardedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "lina_discarded_chunks_total",
			Help: "Output chunks dropped because their run was superseded",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "lina_ws_connections",
			Help: "Open WebSocket terminal connections",
		}),
	}
}

func (m *Metrics) ObserveQuantum(steps int) {
	if m == nil {
		return
	}
	m.Quanta.Inc()
	m.QuantumSteps.Observe(float64(steps))
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.Acquisitions.WithLabelValues("ok").Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) AcquisitionFailed() {
	if m == nil {
		return
	}
	m.Acquisitions.WithLabelValues("error").Inc()
}

func (m *Metrics) AcquisitionCancelled() {
	if m == nil {
		return
	}
	m.Acquisitions.WithLabelValues("cancelled").Inc()
}

func (m *Metrics) RejectInput() {
	if m == nil {
		return
	}
	m.InputRejected.Inc()
}

func (m *Metrics) StaleCallback() {
	if m == nil {
		return
	}
	m.StaleCallbacks.Inc()
}

func (m *Metrics) Discarded(chunks int) {
	if m == nil || chunks == 0 {
		return
	}
	m.DiscardedChunks.Add(float64(chunks))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}
