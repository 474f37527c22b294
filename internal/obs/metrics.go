package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome.",
		},
		[]string{"op", "result"},
	)

	ledgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Ledger operation latencies in seconds, storage included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ledgerInconsistencies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_inconsistencies_total",
			Help: "Known index/record or remittance inconsistencies left behind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tabung_build_info",
			Help: "Always 1; labels name the build and the storage backend in use.",
		},
		[]string{"version", "commit", "store"},
	)
)

// Init registers the ledger metrics in the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ledgerOps, ledgerOpDuration, ledgerInconsistencies, buildInfo)
	})
}

// SetBuildInfo publishes the running build and storage backend.
func SetBuildInfo(version, commit, store string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, store).Set(1)
}

// ObserveOperation counts one finished ledger operation.
func ObserveOperation(op, result string, d time.Duration) {
	ledgerOps.WithLabelValues(op, result).Inc()
	ledgerOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordInconsistency counts a state the ledger could not keep consistent.
func RecordInconsistency(kind string) {
	ledgerInconsistencies.WithLabelValues(kind).Inc()
}

// WriteTextfile dumps the default registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
