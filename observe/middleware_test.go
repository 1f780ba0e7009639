package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingMetrics captures RecordDispatch calls for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	calls    int
	lastErr  error
	cached   bool
	lastMeta CommandMeta
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, meta CommandMeta, _ time.Duration, cached bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMeta = meta
	m.cached = cached
	m.lastErr = err
}

func (m *recordingMetrics) RecordConnection(context.Context, int64) {}

func TestMiddleware_WrapSuccess(t *testing.T) {
	rec := &recordingMetrics{}
	mw := NewMiddleware(nil, rec, nil)

	fn := mw.Wrap(CommandMeta{Command: "^ListUsers"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	result, err := fn(context.Background())
	if err != nil {
		t.Fatalf("fn() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("fn() = %v, want ok", result)
	}
	if rec.calls != 1 || rec.lastErr != nil || rec.cached {
		t.Errorf("metrics calls=%d err=%v cached=%v", rec.calls, rec.lastErr, rec.cached)
	}
	if rec.lastMeta.Command != "^ListUsers" {
		t.Errorf("meta = %+v", rec.lastMeta)
	}
}

func TestMiddleware_WrapError(t *testing.T) {
	rec := &recordingMetrics{}
	mw := NewMiddleware(nil, rec, nil)
	boom := errors.New("backend exploded")

	fn := mw.Wrap(CommandMeta{Command: "^Save"}, func(ctx context.Context) (any, error) {
		return nil, boom
	})

	_, err := fn(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("fn() error = %v, want original error", err)
	}
	if rec.lastErr == nil {
		t.Error("error not recorded in metrics")
	}
}

func TestMiddleware_RecordCacheHit(t *testing.T) {
	rec := &recordingMetrics{}
	mw := NewMiddleware(nil, rec, nil)

	mw.RecordCacheHit(context.Background(), CommandMeta{Command: "^ListUsers"})
	if rec.calls != 1 || !rec.cached {
		t.Errorf("cache hit not recorded: calls=%d cached=%v", rec.calls, rec.cached)
	}
}
