package storage

import (
	"context"
	"sync"
	"time"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/platform/logging"
)

const (
	// DefaultFlushInterval is how often the background loop flushes.
	DefaultFlushInterval = 5 * time.Second
	// DefaultBatchSize caps how many events one flush writes.
	DefaultBatchSize = 100
)

// Stats reports the buffer's current counters for observability.
type Stats struct {
	Pending      int
	TotalFlushed uint64
	LastFlush    *time.Time
	Enabled      bool
	Paused       bool
}

// BatchBuffer accumulates vitals in memory and periodically flushes
// them to a VitalsStore in the background, never blocking the speed
// layer that feeds it.
type BatchBuffer struct {
	mu sync.Mutex

	buffer        []events.RawEvent
	flushInterval time.Duration
	batchSize     int
	enabled       bool
	paused        bool
	totalFlushed  uint64
	lastFlush     *time.Time

	store  VitalsStore
	logger logging.Logger

	stop chan struct{}
	done chan struct{}
}

// NewBatchBuffer creates a buffer bound to store, with the teacher's
// default flush cadence and batch size.
func NewBatchBuffer(store VitalsStore, logger logging.Logger) *BatchBuffer {
	return &BatchBuffer{
		flushInterval: DefaultFlushInterval,
		batchSize:     DefaultBatchSize,
		enabled:       true,
		store:         store,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Add queues an event for batch write. Non-blocking; dropped silently
// while paused or stopped, matching the original's fire-and-forget add.
func (b *BatchBuffer) Add(e events.RawEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled || b.paused {
		return
	}
	b.buffer = append(b.buffer, e)
}

// Pause stops accepting and flushing new events, used during historical
// backfill so the batch layer doesn't compete with the bulk writer.
func (b *BatchBuffer) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
}

// Resume re-enables accepting and flushing events.
func (b *BatchBuffer) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
}

// IsPaused reports the current pause state.
func (b *BatchBuffer) IsPaused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// PendingCount returns how many events are queued for the next flush.
func (b *BatchBuffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// GetStats returns a snapshot of the buffer's counters.
func (b *BatchBuffer) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Pending:      len(b.buffer),
		TotalFlushed: b.totalFlushed,
		LastFlush:    b.lastFlush,
		Enabled:      b.enabled,
		Paused:       b.paused,
	}
}

// StartFlushLoop launches the background flush goroutine.
func (b *BatchBuffer) StartFlushLoop(ctx context.Context) {
	go b.flushLoop(ctx)
}

func (b *BatchBuffer) flushLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			if !b.IsPaused() {
				if _, err := b.Flush(ctx); err != nil {
					b.logger.WithError(err).Error("batch buffer flush failed")
				}
			}
		}
	}
}

// Stop disables further adds, halts the background loop, and performs
// one final flush so nothing queued is lost on shutdown.
func (b *BatchBuffer) Stop(ctx context.Context) {
	b.mu.Lock()
	b.enabled = false
	b.mu.Unlock()

	close(b.stop)
	<-b.done

	if _, err := b.Flush(ctx); err != nil {
		b.logger.WithError(err).Error("final batch buffer flush failed")
	}
}

// Flush writes up to batchSize queued events to the store. On failure
// the events are put back at the front of the buffer for the next
// attempt, exactly as the original's re-prefix-on-failure behaviour.
func (b *BatchBuffer) Flush(ctx context.Context) (int, error) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return 0, nil
	}
	n := b.batchSize
	if n > len(b.buffer) {
		n = len(b.buffer)
	}
	toFlush := make([]events.RawEvent, n)
	copy(toFlush, b.buffer[:n])
	b.buffer = b.buffer[n:]
	b.mu.Unlock()

	if err := b.store.InsertVitals(ctx, toFlush); err != nil {
		b.mu.Lock()
		b.buffer = append(toFlush, b.buffer...)
		b.mu.Unlock()
		return 0, err
	}

	now := time.Now().UTC()
	b.mu.Lock()
	b.totalFlushed += uint64(len(toFlush))
	b.lastFlush = &now
	b.mu.Unlock()

	return len(toFlush), nil
}
