package detect

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics collects the counters the engine exposes through its own private
// prometheus registry, using a promauto-over-a-private-registerer idiom.
// Each Engine owns its own registry so multiple engines (e.g. in tests)
// never collide on metric registration.
type metrics struct {
	registry *prometheus.Registry

	recordsParked       *prometheus.CounterVec
	alertsEnqueued      *prometheus.CounterVec
	fileStoreDisabled   prometheus.Counter
	recordsReconsidered *prometheus.CounterVec
	chunksAllocated     prometheus.Counter
}

func newMetrics() *metrics {
	var reg = prometheus.NewRegistry()
	var m = &metrics{
		registry: reg,
		recordsParked: promautoCounterVec(reg, prometheus.CounterOpts{
			Name: "detect_records_parked_total",
			Help: "counter of progress records parked by the Start path",
		}, []string{"scope", "direction"}),
		alertsEnqueued: promautoCounterVec(reg, prometheus.CounterOpts{
			Name: "detect_alerts_enqueued_total",
			Help: "counter of alerts enqueued by the dispatcher",
		}, []string{"path"}),
		fileStoreDisabled: promautoCounter(reg, prometheus.CounterOpts{
			Name: "detect_filestore_disabled_total",
			Help: "counter of (transaction, direction) pairs for which file storage was disabled",
		}),
		recordsReconsidered: promautoCounterVec(reg, prometheus.CounterOpts{
			Name: "detect_records_reconsidered_total",
			Help: "counter of full-inspect records reopened by a FILE_*_NEW event",
		}, []string{"direction"}),
		chunksAllocated: promautoCounter(reg, prometheus.CounterOpts{
			Name: "detect_store_chunks_allocated_total",
			Help: "counter of record-store chunks allocated",
		}),
	}
	return m
}

func promautoCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	var v = prometheus.NewCounterVec(opts, labels)
	reg.MustRegister(v)
	return v
}

func promautoCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	var c = prometheus.NewCounter(opts)
	reg.MustRegister(c)
	return c
}

// Gatherer exposes the engine's metrics to a caller's scrape endpoint.
func (m *metrics) Gatherer() prometheus.Gatherer { return m.registry }
