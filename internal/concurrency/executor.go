// File: internal/concurrency/executor.go
// Package concurrency implements the fixed-size worker pool that serves
// accepted connections.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor runs tasks on a fixed set of worker goroutines fed by one FIFO
// backlog. The backlog is bounded: Submit blocks while it is full, which stalls
// the accept loop and leaves further clients in the kernel accept queue.

package concurrency

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// PanicHandler observes a panic recovered from a task.
type PanicHandler func(recovered any, stack []byte)

// Option customizes an Executor.
type Option func(*Executor)

// WithPanicHandler installs h; by default panics are swallowed after counting.
func WithPanicHandler(h PanicHandler) Option {
	return func(e *Executor) { e.onPanic = h }
}

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	backlog  *queue.Queue // of TaskFunc
	capacity int
	closed   bool
	active   int

	numWorkers int
	wg         sync.WaitGroup
	onPanic    PanicHandler

	completed atomic.Int64
	panics    atomic.Int64
}

// NewExecutor starts numWorkers workers sharing a backlog of at most queueSize
// pending tasks.
func NewExecutor(numWorkers, queueSize int, opts ...Option) (*Executor, error) {
	if numWorkers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if queueSize <= 0 {
		return nil, ErrInvalidQueueSize
	}
	e := &Executor{
		backlog:    queue.New(),
		capacity:   queueSize,
		numWorkers: numWorkers,
	}
	e.notEmpty = sync.NewCond(&e.mu)
	e.notFull = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	for i := 0; i < numWorkers; i++ {
		e.wg.Add(1)
		go e.run()
	}
	return e, nil
}

// Submit enqueues task, waiting while the backlog is full. It returns
// ErrExecutorClosed once Close has begun, or ctx.Err() if ctx ends first.
func (e *Executor) Submit(ctx context.Context, task TaskFunc) error {
	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.notFull.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.closed && e.backlog.Length() >= e.capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.notFull.Wait()
	}
	if e.closed {
		return ErrExecutorClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.backlog.Add(task)
	e.notEmpty.Signal()
	return nil
}

// NumWorkers returns the fixed worker count.
func (e *Executor) NumWorkers() int {
	return e.numWorkers
}

// Stats returns a snapshot of the pool counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	queued, active := e.backlog.Length(), e.active
	e.mu.Unlock()
	return Stats{
		Workers:   e.numWorkers,
		Queued:    queued,
		Active:    active,
		Completed: e.completed.Load(),
		Panics:    e.panics.Load(),
	}
}

// Stats describes pool occupancy.
type Stats struct {
	Workers   int
	Queued    int
	Active    int
	Completed int64
	Panics    int64
}

// Close stops intake, lets running and already queued tasks finish, then
// waits for every worker to exit. Safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.notEmpty.Broadcast()
		e.notFull.Broadcast()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.backlog.Length() == 0 && !e.closed {
			e.notEmpty.Wait()
		}
		if e.backlog.Length() == 0 {
			e.mu.Unlock()
			return
		}
		task := e.backlog.Remove().(TaskFunc)
		e.active++
		e.notFull.Signal()
		e.mu.Unlock()

		e.safeExecute(task)

		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}
}

// safeExecute runs the task, keeping the worker alive if it panics.
func (e *Executor) safeExecute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			if e.onPanic != nil {
				e.onPanic(r, debug.Stack())
			}
		}
		e.completed.Add(1)
	}()
	task()
}
