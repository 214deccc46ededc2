// Package scheduler runs a tick function on a fixed interval that can be
// started and stopped at runtime.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	interval time.Duration
	tickFn   func(context.Context)
	log      *zap.Logger

	running  atomic.Bool
	ticks    atomic.Int64
	lastTick atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Status is a point-in-time view for the admin API.
type Status struct {
	Running  bool      `json:"running"`
	Interval string    `json:"interval"`
	Ticks    int64     `json:"ticks"`
	LastTick time.Time `json:"last_tick,omitempty"`
}

func New(interval time.Duration, tickFn func(context.Context), log *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop with an immediate first tick. It returns false when
// the scheduler is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("scheduler started", zap.Duration("interval", s.interval))

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.log.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the running tick and waits for the loop to exit.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Ticks:    s.ticks.Load(),
	}
	if ns := s.lastTick.Load(); ns > 0 {
		st.LastTick = time.Unix(0, ns).UTC()
	}
	return st
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic recovered", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	s.ticks.Add(1)
	s.lastTick.Store(start.UnixNano())

	s.tickFn(ctx)
	s.log.Debug("scheduler tick completed", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
}
