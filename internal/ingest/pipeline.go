package ingest

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
	"github.com/mvasconcelos/plantpulse/internal/profile"
	"github.com/mvasconcelos/plantpulse/internal/state"
)

// Storer persists enriched reading batches.
type Storer interface {
	StoreBatch(rows []model.EnrichedReading) (int, error)
}

// Pipeline owns one ingestion buffer and its drain loop. Multiple pipelines
// may run in parallel, each with its own buffer; the store serializes their
// writes.
type Pipeline struct {
	buffer   *Buffer
	catalog  *profile.Catalog
	store    Storer
	tracker  *state.Tracker
	metrics  *Metrics
	interval time.Duration
}

// NewPipeline wires a pipeline. tracker may be nil when no current-state
// view is needed.
func NewPipeline(buffer *Buffer, catalog *profile.Catalog, store Storer, tracker *state.Tracker, metrics *Metrics, drainInterval time.Duration) *Pipeline {
	if drainInterval <= 0 {
		drainInterval = time.Second
	}
	return &Pipeline{
		buffer:   buffer,
		catalog:  catalog,
		store:    store,
		tracker:  tracker,
		metrics:  metrics,
		interval: drainInterval,
	}
}

// Submit offers one batch of raw readings to the buffer. A full buffer is
// reported as ErrBufferFull and counted, never raised as a fatal condition.
func (p *Pipeline) Submit(batch []model.RawReading) error {
	if err := p.buffer.Submit(batch); err != nil {
		p.metrics.BatchesRejected.Inc()
		return err
	}
	p.metrics.BatchesAccepted.Inc()
	return nil
}

// Run starts the drain loop. It blocks until the context is cancelled, then
// drains what is already queued one final time before returning. No data
// error terminates the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("ingestion pipeline started", "drain_interval", p.interval, "buffer_capacity", p.buffer.Cap())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drainOnce()
			slog.Info("ingestion pipeline stopped")
			return ctx.Err()
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

// drainOnce empties the buffer, enriches every valid row and hands the
// combined row-set to the store, retrying the write once.
func (p *Pipeline) drainOnce() {
	batches := p.buffer.Drain()
	if len(batches) == 0 {
		return
	}

	var rows []model.EnrichedReading
	for _, batch := range batches {
		for _, raw := range batch {
			if !validate(raw) {
				p.metrics.RowsMalformed.Inc()
				slog.Warn("rejecting malformed reading",
					"machine_id", raw.MachineID,
					"machine_type", raw.MachineType,
					"parameter", raw.Parameter,
				)
				continue
			}
			if raw.Timestamp == "" {
				raw.Timestamp = time.Now().Format(model.TimestampLayout)
			}
			rows = append(rows, Enrich(p.catalog, raw))
		}
	}
	if len(rows) == 0 {
		return
	}

	stored, err := p.store.StoreBatch(rows)
	if err != nil {
		slog.Warn("batch store failed, retrying once", "rows", len(rows), "error", err)
		stored, err = p.store.StoreBatch(rows)
	}
	if err != nil {
		p.metrics.BatchesDropped.Inc()
		slog.Error("dropping batch after retry", "rows", len(rows), "error", err)
		return
	}

	p.metrics.RowsStored.Add(float64(stored))
	if p.tracker != nil {
		p.tracker.Update(rows)
	}
	slog.Debug("batch stored", "rows", len(rows), "stored", stored)
}

// validate checks the required raw reading fields. The timestamp may be
// empty (filled with the current time) but must parse when present.
func validate(r model.RawReading) bool {
	if r.MachineID <= 0 || r.MachineType == "" || r.Parameter == "" {
		return false
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return false
	}
	if r.Timestamp != "" {
		if _, err := time.Parse(model.TimestampLayout, r.Timestamp); err != nil {
			return false
		}
	}
	return true
}

// Enrich attaches limits, deviation and the out-of-limits flag from the
// catalog. A reading with no matching profile passes through unenriched.
func Enrich(catalog *profile.Catalog, raw model.RawReading) model.EnrichedReading {
	row := model.EnrichedReading{RawReading: raw}

	prof, ok := catalog.Lookup(raw.MachineType, raw.Parameter)
	if !ok {
		return row
	}

	row.Enriched = true
	row.Unit = prof.Unit
	row.MinLimit = prof.Min
	row.MaxLimit = prof.Max
	row.Mean = prof.Mean
	row.Deviation = (raw.Value - prof.Mean) / prof.StdDev
	row.OutOfLimits = raw.Value < prof.Min || raw.Value > prof.Max
	return row
}
