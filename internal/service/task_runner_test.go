package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parserator/internal/service"
)

func TestTaskRunner_RunsTasksWithDeadline(t *testing.T) {
	runner := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 2, TaskTimeout: time.Second})

	var ran, withDeadline atomic.Int32
	for i := 0; i < 5; i++ {
		runner.Go("test", func(ctx context.Context) {
			if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
				withDeadline.Add(1)
			}
			ran.Add(1)
		})
	}
	runner.Wait()

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int32(5), withDeadline.Load())
}

func TestTaskRunner_BoundsConcurrency(t *testing.T) {
	runner := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 2, TaskTimeout: time.Second})

	var current, peak atomic.Int32
	for i := 0; i < 8; i++ {
		runner.Go("test", func(ctx context.Context) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
	}
	runner.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestTaskRunner_RecoversPanics(t *testing.T) {
	runner := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 1})

	var after atomic.Bool
	runner.Go("panics", func(ctx context.Context) { panic("boom") })
	runner.Go("after", func(ctx context.Context) { after.Store(true) })
	runner.Wait()

	assert.True(t, after.Load())
}

func TestTaskRunner_DrainDropsNewTasks(t *testing.T) {
	runner := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 1})

	var ran atomic.Int32
	runner.Go("before", func(ctx context.Context) { ran.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Drain(ctx))

	runner.Go("after", func(ctx context.Context) { ran.Add(1) })
	runner.Wait()

	assert.Equal(t, int32(1), ran.Load())
}

func TestTaskRunner_DrainTimesOut(t *testing.T) {
	runner := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 1, TaskTimeout: time.Second})

	release := make(chan struct{})
	runner.Go("slow", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := runner.Drain(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	runner.Wait()
}
