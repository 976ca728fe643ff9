package datamanager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Пути выполнения операций записи
const (
	pathRemote   = "remote"
	pathLocal    = "local"
	pathRejected = "rejected"
	pathVetoed   = "vetoed"
	pathInvalid  = "invalid"
)

// managerMetrics holds Prometheus metrics for sync engine operations.
type managerMetrics struct {
	writes       *prometheus.CounterVec // By op (save/delete) and path
	syncPhases   *prometheus.CounterVec // By phase (push/pull) and outcome
	pending      *prometheus.GaugeVec   // By kind (unsaved/deleted)
	syncDuration prometheus.Histogram
}

// newManagerMetrics creates and registers metrics with the provided registerer.
func newManagerMetrics(reg prometheus.Registerer) (*managerMetrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	m := &managerMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitysync",
			Subsystem: "datamanager",
			Name:      "writes_total",
			Help:      "Total number of entity writes by operation and path taken",
		}, []string{"op", "path"}), // path: remote, local, rejected, vetoed, invalid

		syncPhases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitysync",
			Subsystem: "datamanager",
			Name:      "sync_phases_total",
			Help:      "Total number of push and pull phases by outcome",
		}, []string{"phase", "outcome"}),

		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "entitysync",
			Subsystem: "datamanager",
			Name:      "pending_changes",
			Help:      "Local changes waiting to be pushed",
		}, []string{"kind"}), // kind: unsaved, deleted

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "entitysync",
			Subsystem: "datamanager",
			Name:      "sync_duration_seconds",
			Help:      "Synchronization duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.writes, m.syncPhases, m.pending, m.syncDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *managerMetrics) recordWrite(op, path string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.writes.WithLabelValues(op, path).Add(float64(n))
}

func (m *managerMetrics) recordPhase(phase, outcome string) {
	if m == nil {
		return
	}
	m.syncPhases.WithLabelValues(phase, outcome).Inc()
}

func (m *managerMetrics) setPending(unsaved, deleted int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues("unsaved").Set(float64(unsaved))
	m.pending.WithLabelValues("deleted").Set(float64(deleted))
}

func (m *managerMetrics) observeSync(start time.Time) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(time.Since(start).Seconds())
}
