package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultFlushInterval = 30 * time.Second
	hybridBatchSize      = 500
	hybridBufferSize     = 10000
)

// Hybrid writes every record to a fast journal immediately and to a durable
// journal in batches from StartBatchWriter.
type Hybrid struct {
	fast          Journal
	durable       BatchJournal
	flushInterval time.Duration
	logger        *slog.Logger

	mu       sync.RWMutex
	closed   bool
	writeCh  chan Record
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool // batch writer has exited; Save writes through
	stopOnce sync.Once
}

var _ Journal = (*Hybrid)(nil)

func NewHybrid(fast Journal, durable BatchJournal, flushInterval time.Duration, logger *slog.Logger) *Hybrid {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{
		fast:          fast,
		durable:       durable,
		flushInterval: flushInterval,
		logger:        logger.With("component", "journal"),
		writeCh:       make(chan Record, hybridBufferSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Save writes to the fast journal and queues the record for the durable one.
// When the queue is full or the batch writer has exited, the record is written
// to the durable journal directly.
func (h *Hybrid) Save(ctx context.Context, r Record) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	if err := h.fast.Save(ctx, r); err != nil {
		h.logger.Error("fast_save_failed", "command_id", r.CommandID, "error", err)
		return fmt.Errorf("fast journal write failed: %w", err)
	}

	if h.stopped {
		return h.saveDirect(ctx, r)
	}

	if depth := len(h.writeCh); depth > cap(h.writeCh)/2 {
		h.logger.Warn("write_queue_high_watermark", "queue_depth", depth)
	}

	select {
	case h.writeCh <- r:
		return nil
	default:
	}

	h.logger.Warn("write_queue_full", "command_id", r.CommandID)
	return h.saveDirect(ctx, r)
}

func (h *Hybrid) saveDirect(ctx context.Context, r Record) error {
	wctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := h.durable.Save(wctx, r); err != nil {
		return fmt.Errorf("durable direct write failed: %w", err)
	}
	return nil
}

// Recent reads from the fast journal and falls back to the durable one.
func (h *Hybrid) Recent(ctx context.Context, n int) ([]Record, error) {
	records, err := h.fast.Recent(ctx, n)
	if err == nil && len(records) > 0 {
		return records, nil
	}
	h.logger.Debug("fast_miss_fallback_to_durable", "error", err)
	return h.durable.Recent(ctx, n)
}

// StartBatchWriter flushes queued records every flush interval or when a batch
// fills up. It returns after Close or when ctx is cancelled, flushing what is left.
func (h *Hybrid) StartBatchWriter(ctx context.Context) {
	h.mu.Lock()
	if h.started || h.closed {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()
	defer close(h.doneCh)

	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, hybridBatchSize)
	h.logger.Info("batch_writer_started",
		"interval", h.flushInterval.String(),
		"batch_size", hybridBatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			h.finish(batch)
			return
		case <-h.stopCh:
			h.finish(batch)
			return
		case r := <-h.writeCh:
			batch = append(batch, r)
			if len(batch) >= hybridBatchSize {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				h.logger.Debug("periodic_batch_flush", "count", len(batch))
				h.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// finish switches Save to direct writes, then flushes what is still queued.
// Taking the write lock waits out any Save that is mid-enqueue.
func (h *Hybrid) finish(batch []Record) {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.drain(batch)
}

func (h *Hybrid) drain(batch []Record) {
	for {
		select {
		case r := <-h.writeCh:
			batch = append(batch, r)
		default:
			h.logger.Info("batch_writer_shutting_down", "remaining", len(batch))
			h.flush(batch)
			return
		}
	}
}

func (h *Hybrid) flush(batch []Record) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.durable.SaveBatch(ctx, batch); err != nil {
		h.logger.Error("batch_insert_failed", "count", len(batch), "error", err)
		return
	}
	h.logger.Debug("batch_insert_success",
		"count", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close stops the batch writer, waits for its final flush and closes both journals.
func (h *Hybrid) Close() error {
	h.mu.Lock()
	h.closed = true
	started := h.started
	h.mu.Unlock()

	h.stopOnce.Do(func() { close(h.stopCh) })
	if started {
		select {
		case <-h.doneCh:
		case <-time.After(35 * time.Second):
			h.logger.Warn("batch_writer_stop_timeout")
		}
	}

	if err := h.fast.Close(); err != nil {
		h.logger.Error("failed_to_close_fast_journal", "error", err)
	}
	if err := h.durable.Close(); err != nil {
		h.logger.Error("failed_to_close_durable_journal", "error", err)
	}
	return nil
}
