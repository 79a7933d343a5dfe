// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Configuration, metrics, reload hooks and debug introspection for the
// todo server.
//
// Provides concurrent-safe state handling primitives including:
//   - Layered config loading (defaults, YAML, environment) and validation
//   - Prometheus collectors on a private registry
//   - Reload observers triggered by SIGHUP
//   - Debug probe registration and state export
package control
