// Package parallel fans work out over a bounded set of goroutines. The job
// substrate runs every process rank through ForEach with one worker per
// rank, since ranks block on each other at barriers and must all be live.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PoolConfig bounds a worker pool.
type PoolConfig struct {
	// MaxWorkers caps concurrency. Default: min(runtime.NumCPU(), 8).
	MaxWorkers int

	// TaskBufferSize is the work queue depth. Default: MaxWorkers * 2.
	TaskBufferSize int

	// Timeout bounds the whole batch. Zero means no timeout.
	Timeout time.Duration
}

// DefaultPoolConfig sizes the pool for CPU-bound work.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{
		MaxWorkers:     workers,
		TaskBufferSize: workers * 2,
	}
}

// WithWorkers returns a copy of the config with MaxWorkers set.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a copy of the config with Timeout set.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// TaskResult pairs one input with what running it produced.
type TaskResult[T any, R any] struct {
	Input    T
	Result   R
	Error    error
	Duration time.Duration
}

// WorkerPool runs batches of homogeneous work items.
type WorkerPool[T any, R any] struct {
	config PoolConfig
}

// NewWorkerPool fills in defaults for any unset config field.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	if config.TaskBufferSize <= 0 {
		config.TaskBufferSize = config.MaxWorkers * 2
	}
	return &WorkerPool[T, R]{config: config}
}

// ExecuteFunc applies fn to every input in parallel. The returned slice is
// indexed like inputs, so results keep their order regardless of which
// worker ran them.
func (p *WorkerPool[T, R]) ExecuteFunc(ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) []TaskResult[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	results := make([]TaskResult[T, R], len(inputs))
	queue := make(chan int, p.config.TaskBufferSize)

	workers := p.config.MaxWorkers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-queue:
					if !ok {
						return
					}
					start := time.Now()
					out, err := fn(ctx, inputs[idx])
					results[idx] = TaskResult[T, R]{
						Input:    inputs[idx],
						Result:   out,
						Error:    err,
						Duration: time.Since(start),
					}
				}
			}
		}()
	}

	go func() {
		defer close(queue)
		for i := range inputs {
			select {
			case <-ctx.Done():
				return
			case queue <- i:
			}
		}
	}()

	wg.Wait()
	return results
}

// ForEach applies fn to every item in parallel and reports how many
// succeeded along with the first error seen.
func ForEach[T any](
	ctx context.Context,
	items []T,
	config PoolConfig,
	fn func(ctx context.Context, item T) error,
) (processed int64, firstError error) {
	if len(items) == 0 {
		return 0, nil
	}

	var done atomic.Int64
	var errOnce sync.Once
	var errMu sync.Mutex

	pool := NewWorkerPool[T, struct{}](config)
	pool.ExecuteFunc(ctx, items, func(ctx context.Context, item T) (struct{}, error) {
		if err := fn(ctx, item); err != nil {
			errOnce.Do(func() {
				errMu.Lock()
				firstError = err
				errMu.Unlock()
			})
			return struct{}{}, err
		}
		done.Add(1)
		return struct{}{}, nil
	})

	return done.Load(), firstError
}
