package core

// metrics.go exposes the node's admit/reject/commit counters as
// prometheus/client_golang metrics, scraped by the inspection HTTP server
// (inspect.go), using the standard promauto counter/gauge idiom.

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge a validator node updates while serving
// requests. One instance per node; registered against its own registry so
// multiple nodes in the same process (as in tests) don't collide.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsAdmitted *prometheus.CounterVec
	RequestsRejected *prometheus.CounterVec
	BlocksCommitted  prometheus.Counter
	ActivePeers      prometheus.Gauge
}

// NewMetrics constructs a fresh metrics set registered against its own
// prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsAdmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniledger_requests_admitted_total",
			Help: "Requests that received a local YES decision, by action.",
		}, []string{"action"}),
		RequestsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniledger_requests_rejected_total",
			Help: "Requests that received a local NO decision, by action.",
		}, []string{"action"}),
		BlocksCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "miniledger_blocks_committed_total",
			Help: "Blocks appended to the log after a YES consensus verdict.",
		}),
		ActivePeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miniledger_active_peers",
			Help: "Registry peers that have heartbeated within the liveness window.",
		}),
	}
}

// observeDecision records a local admit/reject decision for action.
func (m *Metrics) observeDecision(action string, decision bool) {
	if m == nil {
		return
	}
	if decision {
		m.RequestsAdmitted.WithLabelValues(action).Inc()
	} else {
		m.RequestsRejected.WithLabelValues(action).Inc()
	}
}

// observeCommit records a block append.
func (m *Metrics) observeCommit() {
	if m == nil {
		return
	}
	m.BlocksCommitted.Inc()
}

// observeActivePeers sets the active-peer gauge to count.
func (m *Metrics) observeActivePeers(count int) {
	if m == nil {
		return
	}
	m.ActivePeers.Set(float64(count))
}
