package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// RetentionConfig defines how long readings and anomalies are kept. A zero
// duration disables pruning for that table.
type RetentionConfig struct {
	Readings  time.Duration
	Anomalies time.Duration
}

// DefaultRetention keeps readings and anomalies for 90 days. Anomaly
// retention must not exceed reading retention or pruned readings would leave
// dangling anomaly references.
func DefaultRetention() RetentionConfig {
	return RetentionConfig{
		Readings:  90 * 24 * time.Hour,
		Anomalies: 90 * 24 * time.Hour,
	}
}

// Pruner periodically removes rows older than the retention window.
type Pruner struct {
	store     *Store
	retention RetentionConfig
	interval  time.Duration
}

// NewPruner creates a pruner with the given retention config.
func NewPruner(store *Store, retention RetentionConfig) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  1 * time.Hour,
	}
}

// Run starts the pruner loop. It blocks until the context is cancelled.
func (p *Pruner) Run(ctx context.Context) error {
	slog.Info("pruner started", "interval", p.interval)

	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pruner stopped")
			return ctx.Err()
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	now := time.Now()
	tables := []struct {
		name      string
		retention time.Duration
	}{
		// Anomalies first so a pruned reading never leaves a dangling
		// anomaly referencing it.
		{"anomalies", p.retention.Anomalies},
		{"readings", p.retention.Readings},
	}

	p.store.writeMu.Lock()
	defer p.store.writeMu.Unlock()

	for _, t := range tables {
		if t.retention <= 0 {
			continue
		}
		cutoff := now.Add(-t.retention).Format(model.TimestampLayout)
		result, err := p.store.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", t.name), cutoff)
		if err != nil {
			slog.Error("pruning failed", "table", t.name, "error", err)
			continue
		}
		rows, _ := result.RowsAffected()
		if rows > 0 {
			slog.Info("pruned old data", "table", t.name, "rows", rows)
		}
	}
}
