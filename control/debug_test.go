package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	n := 0
	dp.RegisterProbe("calls", func() any { n++; return n })
	dp.RegisterProbe("name", func() any { return "todo" })

	assert.Equal(t, []string{"calls", "name"}, dp.Names())
	assert.Equal(t, map[string]any{"calls": 1, "name": "todo"}, dp.DumpState())
	assert.Equal(t, 2, dp.DumpState()["calls"])

	dp.RegisterProbe("name", func() any { return "replaced" })
	assert.Equal(t, "replaced", dp.DumpState()["name"])
}

func TestReloaderRunsHooksInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	r := NewReloader(func() (*Config, error) { return cfg, nil })

	var order []string
	r.RegisterReloadHook(func(c *Config) { order = append(order, "a:"+c.LogLevel) })
	r.RegisterReloadHook(func(c *Config) { order = append(order, "b:"+c.LogLevel) })

	got, err := r.Reload()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
	assert.Equal(t, []string{"a:debug", "b:debug"}, order)
}

func TestReloaderSkipsHooksOnError(t *testing.T) {
	boom := errors.New("bad yaml")
	r := NewReloader(func() (*Config, error) { return nil, boom })
	called := false
	r.RegisterReloadHook(func(*Config) { called = true })

	_, err := r.Reload()
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}
