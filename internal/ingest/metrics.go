package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline counters. The registry is constructed and
// injected by the caller; one Metrics instance belongs to one pipeline.
type Metrics struct {
	BatchesAccepted prometheus.Counter
	BatchesRejected prometheus.Counter
	BatchesDropped  prometheus.Counter
	RowsMalformed   prometheus.Counter
	RowsStored      prometheus.Counter
}

// NewMetrics creates and registers the pipeline counters on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		BatchesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpulse_ingest_batches_accepted_total",
			Help: "Batches accepted into the ingestion buffer",
		}),
		BatchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpulse_ingest_batches_rejected_total",
			Help: "Batches rejected because the buffer was at capacity",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpulse_ingest_batches_dropped_total",
			Help: "Batches dropped after a failed persistence retry",
		}),
		RowsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpulse_ingest_rows_malformed_total",
			Help: "Rows rejected individually for missing required fields",
		}),
		RowsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpulse_ingest_rows_stored_total",
			Help: "Rows successfully persisted",
		}),
	}
	reg.MustRegister(m.BatchesAccepted, m.BatchesRejected, m.BatchesDropped, m.RowsMalformed, m.RowsStored)
	return m
}
