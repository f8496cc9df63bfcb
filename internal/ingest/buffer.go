// Package ingest provides the buffered ingestion and enrichment pipeline.
package ingest

import (
	"errors"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// ErrBufferFull is returned by Submit when the buffer stays at capacity for
// the whole bounded wait. Callers treat it as a rejection outcome, not a
// fatal condition.
var ErrBufferFull = errors.New("ingestion buffer full")

// Buffer is a bounded, concurrency-safe queue of raw reading batches.
// Capacity is counted in batches; submission waits at most submitTimeout
// before rejecting.
type Buffer struct {
	ch            chan []model.RawReading
	submitTimeout time.Duration
}

// NewBuffer creates a buffer holding up to capacity batches. A
// non-positive submitTimeout means reject immediately when full.
func NewBuffer(capacity int, submitTimeout time.Duration) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		ch:            make(chan []model.RawReading, capacity),
		submitTimeout: submitTimeout,
	}
}

// Submit enqueues one batch. It blocks for at most the configured submit
// timeout; if no slot frees up it returns ErrBufferFull.
func (b *Buffer) Submit(batch []model.RawReading) error {
	if len(batch) == 0 {
		return nil
	}

	select {
	case b.ch <- batch:
		return nil
	default:
	}

	if b.submitTimeout <= 0 {
		return ErrBufferFull
	}

	timer := time.NewTimer(b.submitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- batch:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// Drain removes and returns all currently queued batches in FIFO order
// without blocking.
func (b *Buffer) Drain() [][]model.RawReading {
	var batches [][]model.RawReading
	for {
		select {
		case batch := <-b.ch:
			batches = append(batches, batch)
		default:
			return batches
		}
	}
}

// Len returns the number of batches currently queued.
func (b *Buffer) Len() int { return len(b.ch) }

// Cap returns the buffer's batch capacity.
func (b *Buffer) Cap() int { return cap(b.ch) }
