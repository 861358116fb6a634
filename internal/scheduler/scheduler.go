// Package scheduler runs the pipeline's named periodic tasks.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc is one scheduled unit of work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	running  chan struct{}
}

// ErrorHook is called with the task name when a run returns an error.
type ErrorHook func(name string)

// Scheduler runs each registered task on its own cadence. Tasks are isolated
// from each other: a panicking or failing task never stops its peers, and a
// slow run skips ticks instead of overlapping itself.
type Scheduler struct {
	tasks   []*task
	logger  *slog.Logger
	onError ErrorHook

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty scheduler. The error hook may be nil.
func New(logger *slog.Logger, onError ErrorHook) *Scheduler {
	return &Scheduler{logger: logger, onError: onError}
}

// Add registers a named task. A zero or negative interval disables it.
func (s *Scheduler) Add(name string, interval time.Duration, fn TaskFunc) {
	if interval <= 0 {
		s.logger.Info("task disabled", "task", name)
		return
	}
	s.tasks = append(s.tasks, &task{
		name:     name,
		interval: interval,
		fn:       fn,
		running:  make(chan struct{}, 1),
	})
}

// Start launches every task. Each runs once immediately, then on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t *task) {
			defer s.wg.Done()
			s.loop(ctx, t)
		}(t)
	}
}

// Stop cancels all tasks and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	s.runOnce(ctx, t)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce executes the task unless a previous run is still in flight.
func (s *Scheduler) runOnce(ctx context.Context, t *task) {
	select {
	case t.running <- struct{}{}:
	default:
		s.logger.Warn("previous run still in progress, skipping tick", "task", t.name)
		return
	}
	defer func() { <-t.running }()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", t.name, "panic", r)
			if s.onError != nil {
				s.onError(t.name)
			}
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		s.logger.Error("task failed", "task", t.name, "err", err)
		if s.onError != nil {
			s.onError(t.name)
		}
		return
	}
	s.logger.Debug("task completed", "task", t.name, "elapsed", time.Since(start))
}
