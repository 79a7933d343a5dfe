// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrExecutorClosed indicates the executor has been shut down
	ErrExecutorClosed = errors.New("executor is closed")

	// ErrInvalidWorkerCount indicates invalid worker count configuration
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidQueueSize indicates a non-positive backlog bound
	ErrInvalidQueueSize = errors.New("invalid queue size")
)
