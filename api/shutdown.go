// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// GracefulShutdown combines the logic of orderly component termination.
type GracefulShutdown interface {
	// Shutdown stops intake, waits for in-flight work until ctx expires and
	// releases resources. Returns an error on failure or timeout.
	Shutdown(ctx context.Context) error
}
