// Package api
// Author: momentics
//
// Executor contract for dispatching accepted connections to a worker pool.

package api

import "context"

// Executor abstracts a fixed-size pool of workers fed by a bounded backlog.
type Executor interface {
	// Submit schedules task for execution. It blocks while the backlog is
	// full and fails once the executor is closed or ctx is done.
	Submit(ctx context.Context, task func()) error

	// NumWorkers returns the number of worker routines.
	NumWorkers() int

	// Stats returns a point-in-time view of the pool.
	Stats() ExecutorStats

	// Close stops intake, drains queued tasks and joins the workers.
	Close()
}

// ExecutorStats describes pool occupancy.
type ExecutorStats struct {
	Workers   int
	Queued    int
	Active    int
	Completed int64
	Panics    int64
}
