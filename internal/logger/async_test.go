package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects slog.Records for test assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
	delay   time.Duration // optional per-record processing delay
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func TestAsyncHandler_CloseDrainsQueue(t *testing.T) {
	tests := []struct {
		name    string
		buffer  int
		workers int
		records int
	}{
		{"single record", 100, 1, 1},
		{"many records two workers", 1000, 2, 200},
		{"empty queue", 10, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &recordingHandler{}
			ah := NewAsyncHandler(inner, tt.buffer, tt.workers)
			for range tt.records {
				rec := slog.NewRecord(time.Now(), slog.LevelInfo, "session recomputed", 0)
				if err := ah.Handle(context.Background(), rec); err != nil {
					t.Fatalf("Handle: %v", err)
				}
			}
			ah.Close()
			if got := inner.count(); got != tt.records {
				t.Fatalf("expected %d records after Close, got %d", tt.records, got)
			}
		})
	}
}

func TestAsyncHandler_ConcurrentWrites(t *testing.T) {
	const goroutines = 100
	const perGoroutine = 100
	total := goroutines * perGoroutine

	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, 10000, 4)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				rec := slog.NewRecord(time.Now(), slog.LevelInfo, "concurrent", 0)
				_ = ah.Handle(context.Background(), rec)
			}
		}()
	}
	wg.Wait()
	ah.Close()

	if got := inner.count(); got != total {
		t.Fatalf("expected %d records, got %d", total, got)
	}
}

func TestAsyncHandler_CloseIdempotentAndReportsDrops(t *testing.T) {
	inner := &recordingHandler{delay: 5 * time.Millisecond}
	ah := NewAsyncHandler(inner, 1, 1)

	for range 20 {
		_ = ah.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "flood", 0))
	}
	ah.Close()
	ah.Close()

	if ah.DroppedCount() == 0 {
		t.Fatal("expected drops")
	}
	inner.mu.Lock()
	last := inner.records[len(inner.records)-1]
	inner.mu.Unlock()
	if last.Message != "async logger dropped records" || last.Level != slog.LevelWarn {
		t.Errorf("expected a final drop report, got %q", last.Message)
	}

	// Records after Close are counted, not sent on a closed channel.
	before := ah.DroppedCount()
	_ = ah.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "late", 0))
	if ah.DroppedCount() != before+1 {
		t.Error("expected late record counted as dropped")
	}
}

func TestAsyncHandler_DerivedHandlersShareQueue(t *testing.T) {
	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, 10, 1)
	derived := ah.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("g")

	_ = derived.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "derived", 0))
	ah.Close()

	if inner.count() != 1 {
		t.Fatalf("expected derived record drained by parent Close, got %d", inner.count())
	}
}
