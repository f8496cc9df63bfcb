package ingest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

func rawBatch(machineID int) []model.RawReading {
	return []model.RawReading{{
		MachineID:   machineID,
		MachineType: "cnc_lathe",
		Parameter:   "temperature",
		Value:       72,
	}}
}

func TestBuffer_SubmitAndDrain(t *testing.T) {
	buf := NewBuffer(4, 0)

	require.NoError(t, buf.Submit(rawBatch(1)))
	require.NoError(t, buf.Submit(rawBatch(2)))
	assert.Equal(t, 2, buf.Len())

	batches := buf.Drain()
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0][0].MachineID)
	assert.Equal(t, 2, batches[1][0].MachineID)
	assert.Equal(t, 0, buf.Len())
}

func TestBuffer_EmptyBatchIsNoop(t *testing.T) {
	buf := NewBuffer(1, 0)

	require.NoError(t, buf.Submit(nil))
	require.NoError(t, buf.Submit([]model.RawReading{}))
	assert.Equal(t, 0, buf.Len())
}

func TestBuffer_FullRejectsImmediately(t *testing.T) {
	buf := NewBuffer(1, 0)

	require.NoError(t, buf.Submit(rawBatch(1)))
	assert.ErrorIs(t, buf.Submit(rawBatch(2)), ErrBufferFull)
}

func TestBuffer_FullWaitsThenRejects(t *testing.T) {
	buf := NewBuffer(1, 20*time.Millisecond)
	require.NoError(t, buf.Submit(rawBatch(1)))

	start := time.Now()
	err := buf.Submit(rawBatch(2))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBuffer_WaitSucceedsWhenSlotFrees(t *testing.T) {
	buf := NewBuffer(1, 500*time.Millisecond)
	require.NoError(t, buf.Submit(rawBatch(1)))

	go func() {
		time.Sleep(10 * time.Millisecond)
		buf.Drain()
	}()

	assert.NoError(t, buf.Submit(rawBatch(2)))
}

func TestBuffer_ConcurrentSubmitsOverCapacity(t *testing.T) {
	buf := NewBuffer(2, 10*time.Millisecond)

	var rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := buf.Submit(rawBatch(id)); err != nil {
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), rejected.Load())
	assert.Equal(t, 2, buf.Len())
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	buf := NewBuffer(0, 0)
	assert.Equal(t, 1, buf.Cap())
}
