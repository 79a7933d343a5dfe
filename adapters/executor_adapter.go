// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and api.Executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements the api.Executor interface by delegating to the
// internal concurrency.Executor, so the server depends only on the contract.

package adapters

import (
	"context"
	"log/slog"

	"github.com/momentics/hioload-todo/api"
	"github.com/momentics/hioload-todo/internal/concurrency"
)

// ExecutorAdapter wraps an internal concurrency.Executor to satisfy the api.Executor contract.
type ExecutorAdapter struct {
	exec *concurrency.Executor
}

// NewExecutorAdapter constructs an api.Executor with a fixed number of workers
// and a backlog bounded by queueSize. Panics escaping a task are logged.
func NewExecutorAdapter(workers, queueSize int, log *slog.Logger) (api.Executor, error) {
	e, err := concurrency.NewExecutor(workers, queueSize,
		concurrency.WithPanicHandler(func(r any, stack []byte) {
			log.Error("worker task panicked", "panic", r, "stack", string(stack))
		}))
	if err != nil {
		return nil, err
	}
	return &ExecutorAdapter{exec: e}, nil
}

// Submit dispatches a task function to be executed asynchronously.
func (ea *ExecutorAdapter) Submit(ctx context.Context, task func()) error {
	return ea.exec.Submit(ctx, task)
}

// NumWorkers returns the number of worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Stats converts the internal counters into the api view.
func (ea *ExecutorAdapter) Stats() api.ExecutorStats {
	st := ea.exec.Stats()
	return api.ExecutorStats{
		Workers:   st.Workers,
		Queued:    st.Queued,
		Active:    st.Active,
		Completed: st.Completed,
		Panics:    st.Panics,
	}
}

// Close shuts down the executor after queued work drains.
func (ea *ExecutorAdapter) Close() {
	ea.exec.Close()
}
