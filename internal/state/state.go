// Package state keeps the most recent observed value per machine parameter.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// key identifies one tracked series.
type key struct {
	MachineID int
	Parameter string
}

// Tracker is a thread-safe view of the fleet's latest readings, updated by
// the ingestion pipeline after each successful store.
type Tracker struct {
	mu       sync.RWMutex
	current  map[key]model.CurrentValue
	lastSeen time.Time
}

// New returns an initialized Tracker.
func New() *Tracker {
	return &Tracker{current: make(map[key]model.CurrentValue)}
}

// Update records the latest value for each row's (machine, parameter).
// Rows are applied in order, so the last row of a series wins.
func (t *Tracker) Update(rows []model.EnrichedReading) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		t.current[key{row.MachineID, row.Parameter}] = model.CurrentValue{
			MachineID:   row.MachineID,
			MachineType: row.MachineType,
			Parameter:   row.Parameter,
			Value:       row.Value,
			Timestamp:   row.Timestamp,
			OutOfLimits: row.OutOfLimits,
			UpdatedAt:   now,
		}
	}
	t.lastSeen = now
}

// Snapshot returns a copy of all current values, keyed by machine ID.
func (t *Tracker) Snapshot() map[int][]model.CurrentValue {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := make(map[int][]model.CurrentValue)
	for _, v := range t.current {
		snap[v.MachineID] = append(snap[v.MachineID], v)
	}
	for _, values := range snap {
		sort.Slice(values, func(i, j int) bool { return values[i].Parameter < values[j].Parameter })
	}
	return snap
}

// LastUpdate returns when the tracker last received data; the zero time
// means no data has arrived yet.
func (t *Tracker) LastUpdate() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSeen
}

// Len returns the number of tracked series.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.current)
}
