package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes and stops the log pipeline.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncState is shared by an AsyncHandler and every handler derived from it.
type asyncState struct {
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
	closed  atomic.Bool
	once    sync.Once
	mu      sync.RWMutex // guards sends against close(ch)
}

type queued struct {
	inner slog.Handler
	rec   slog.Record
}

// AsyncHandler moves record formatting and I/O off the caller's goroutine.
// When the buffer is full records are dropped and counted, so a slow log sink
// never stalls session recomputation.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given buffer capacity and worker count.
func NewAsyncHandler(inner slog.Handler, bufferSize, workers int) *AsyncHandler {
	st := &asyncState{ch: make(chan queued, bufferSize)}
	for range workers {
		st.wg.Add(1)
		go st.drain()
	}
	return &AsyncHandler{inner: inner, state: st}
}

func (st *asyncState) drain() {
	defer st.wg.Done()
	for q := range st.ch {
		_ = q.inner.Handle(context.Background(), q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a copy of the record. Records arriving after Close are dropped.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	st := h.state
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed.Load() {
		st.dropped.Add(1)
		return nil
	}
	select {
	case st.ch <- queued{inner: h.inner, rec: rec.Clone()}:
	default:
		st.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue with attrs added.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler sharing the same queue inside group name.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close drains the queue and stops the workers. If records were dropped a
// final warning carrying the count is written synchronously. Close is safe
// to call more than once.
func (h *AsyncHandler) Close() {
	st := h.state
	st.once.Do(func() {
		st.mu.Lock()
		st.closed.Store(true)
		close(st.ch)
		st.mu.Unlock()
		st.wg.Wait()

		if n := st.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async logger dropped records", 0)
			rec.AddAttrs(slog.Int64("dropped", n))
			_ = h.inner.Handle(context.Background(), rec)
		}
	})
}
