package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout.D())
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes.Int64())
	assert.Equal(t, "1.0 MiB", cfg.MaxBodyBytes.String())
	assert.Equal(t, "error.log", cfg.LogFile)
	assert.True(t, cfg.Metrics)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 0.0.0.0
port: 9090
workers: 8
queue_size: 128
read_timeout: 2s
write_timeout: 3
max_body_bytes: 64KiB
log_level: debug
metrics: false
`), 0o600))

	cfg, err := Load(path, envMap(map[string]string{
		"HIOLOAD_TODO_PORT":        "9191",
		"HIOLOAD_TODO_ACCEPT_RATE": "250",
		"HIOLOAD_TODO_LOG_FILE":    "/tmp/todo-errors.log",
		"HIOLOAD_TODO_WORKERS":     "  ",
	}))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9191", cfg.Addr())
	assert.Equal(t, 8, cfg.Workers, "blank env values are ignored")
	assert.Equal(t, 128, cfg.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout.D())
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout.D())
	assert.Equal(t, int64(64*1024), cfg.MaxBodyBytes.Int64())
	assert.Equal(t, 250.0, cfg.AcceptRate)
	assert.Equal(t, "/tmp/todo-errors.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Metrics)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load("", envMap(map[string]string{"HIOLOAD_TODO_WORKERS": "zero"}))
	assert.ErrorContains(t, err, "HIOLOAD_TODO_WORKERS")

	_, err = Load("", envMap(map[string]string{"HIOLOAD_TODO_WORKERS": "0"}))
	assert.ErrorContains(t, err, "workers must be >= 1")

	_, err = Load("", envMap(map[string]string{"HIOLOAD_TODO_MAX_BODY_BYTES": "lots"}))
	assert.ErrorContains(t, err, "invalid size value")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("read_timeout: soon\n"), 0o600))
	_, err = Load(path, envMap(nil))
	assert.ErrorContains(t, err, "invalid duration")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HIOLOAD_TODO_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HIOLOAD_TODO_TEST_DOTENV") })
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("HIOLOAD_TODO_TEST_DOTENV"))
}

func TestReloadDotEnvAppliesEdits(t *testing.T) {
	const key = EnvPrefix + "LOG_LEVEL"
	prev, had := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=info\n"), 0o600))
	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte(key+"=debug\n"), 0o600))
	require.NoError(t, LoadDotEnv(path))
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel, "startup load keeps existing variables")

	require.NoError(t, ReloadDotEnv(path))
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.NoError(t, ReloadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
