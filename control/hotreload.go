// control/hotreload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reload hooks run when the operator asks for the config to be re-read
// (SIGHUP). Only settings that are safe to change live are applied by hooks;
// listener, pool and limits stay fixed for the process lifetime.

package control

import (
	"fmt"
	"sync"
)

// Reloader re-reads configuration and hands it to registered hooks.
type Reloader struct {
	mu    sync.Mutex
	load  func() (*Config, error)
	hooks []func(*Config)
}

// NewReloader creates a Reloader that obtains fresh config from load.
func NewReloader(load func() (*Config, error)) *Reloader {
	return &Reloader{load: load}
}

// RegisterReloadHook adds a component reload listener.
func (r *Reloader) RegisterReloadHook(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Reload loads the config and invokes every hook synchronously, in
// registration order. On a load error no hook runs.
func (r *Reloader) Reload() (*Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}
	for _, fn := range r.hooks {
		fn(cfg)
	}
	return cfg, nil
}
