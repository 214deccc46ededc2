package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMax    = 100
	DefaultWindow = 60 * time.Second
)

// ExceededError is returned by Allow once the current window is full.
type ExceededError struct {
	Max    int
	Window time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: max %d requests per %d seconds", e.Max, int(e.Window.Seconds()))
}

// Window is the shared counter behind a Limiter. Hit records one request and
// returns the number of requests seen in the current fixed window, starting a
// fresh window when the previous one has elapsed.
type Window interface {
	Hit(ctx context.Context, window time.Duration) (int64, error)
}

type Limiter struct {
	store Window

	mu     sync.RWMutex
	max    int
	window time.Duration
}

func New(store Window, max int, window time.Duration) *Limiter {
	l := &Limiter{store: store}
	l.SetLimits(max, window)
	return l
}

// SetLimits replaces the limits; non-positive values fall back to the defaults.
func (l *Limiter) SetLimits(max int, window time.Duration) {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	l.max = max
	l.window = window
	l.mu.Unlock()
}

func (l *Limiter) Limits() (int, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.max, l.window
}

func (l *Limiter) Allow(ctx context.Context) error {
	max, window := l.Limits()

	count, err := l.store.Hit(ctx, window)
	if err != nil {
		return fmt.Errorf("rate window: %w", err)
	}
	if count > int64(max) {
		return &ExceededError{Max: max, Window: window}
	}
	return nil
}

// MemoryWindow keeps the counter in process memory.
type MemoryWindow struct {
	mu    sync.Mutex
	count int64
	start time.Time
	now   func() time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{now: time.Now}
}

func (w *MemoryWindow) Hit(_ context.Context, window time.Duration) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.start.IsZero() || now.Sub(w.start) > window {
		w.start = now
		w.count = 1
		return w.count, nil
	}

	w.count++
	return w.count, nil
}
