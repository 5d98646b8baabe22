package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"parserator/internal/logger"
)

// TaskRunnerConfig holds settings for background task execution.
type TaskRunnerConfig struct {
	Concurrency int
	TaskTimeout time.Duration
}

// TaskRunner runs fire-and-forget work off the request path. Each task gets a
// fresh context bounded by TaskTimeout so it survives the request that queued it.
type TaskRunner struct {
	cfg     TaskRunnerConfig
	sem     chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewTaskRunner creates a new TaskRunner.
func NewTaskRunner(cfg TaskRunnerConfig) *TaskRunner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &TaskRunner{cfg: cfg, sem: make(chan struct{}, cfg.Concurrency)}
}

// Go schedules fn and returns immediately. Tasks submitted after Drain has
// started are dropped.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context)) {
	r.GoWithTimeout(name, r.cfg.TaskTimeout, fn)
}

// GoWithTimeout is Go with a task-specific deadline.
func (r *TaskRunner) GoWithTimeout(name string, timeout time.Duration, fn func(ctx context.Context)) {
	if r.closed.Load() {
		r.dropped.Add(1)
		logger.Warn("service.TaskRunner.Go: runner draining, task dropped", "task", name)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{} // acquire
		defer func() { <-r.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("service.TaskRunner.Go: task panicked", "task", name, "panic", rec)
			}
		}()
		fn(ctx)
	}()
}

// Drain stops accepting tasks and waits for in-flight ones until ctx is done.
func (r *TaskRunner) Drain(ctx context.Context) error {
	r.closed.Store(true)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	logger.Info("service.TaskRunner.Drain: waiting for background tasks")
	select {
	case <-done:
		logger.Info("service.TaskRunner.Drain: complete", "dropped", r.dropped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every scheduled task has finished. Intended for tests.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
