// control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration: defaults, optional YAML file, then HIOLOAD_TODO_*
// environment overrides. CLI flags are applied on top by cmd/hioload-todo.

package control

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HIOLOAD_TODO_"

// Config holds parameters immutable per run.
type Config struct {
	Host            string    `yaml:"host"`
	Port            int       `yaml:"port"`
	Workers         int       `yaml:"workers"`    // fixed pool size
	QueueSize       int       `yaml:"queue_size"` // accepted connections waiting for a worker
	ReadTimeout     Duration  `yaml:"read_timeout"`
	WriteTimeout    Duration  `yaml:"write_timeout"`
	ShutdownTimeout Duration  `yaml:"shutdown_timeout"`
	MaxBodyBytes    SizeBytes `yaml:"max_body_bytes"`
	MaxHeaderBytes  SizeBytes `yaml:"max_header_bytes"`
	AcceptRate      float64   `yaml:"accept_rate"` // connections per second, 0 = unlimited
	AcceptBurst     int       `yaml:"accept_burst"`
	LogFile         string    `yaml:"log_file"`
	LogLevel        string    `yaml:"log_level"`
	Metrics         bool      `yaml:"metrics"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8080,
		Workers:         4,
		QueueSize:       64,
		ReadTimeout:     Duration(5 * time.Second),
		WriteTimeout:    Duration(5 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),
		MaxBodyBytes:    1 << 20,
		MaxHeaderBytes:  8192,
		AcceptRate:      0,
		AcceptBurst:     16,
		LogFile:         "error.log",
		LogLevel:        "info",
		Metrics:         true,
	}
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be >= 1, got %d", c.QueueSize))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.MaxHeaderBytes <= 0 {
		errs = append(errs, errors.New("max_header_bytes must be positive"))
	}
	if c.AcceptRate < 0 {
		errs = append(errs, errors.New("accept_rate must not be negative"))
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("read_timeout and write_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ReloadDotEnv re-reads path and overwrites variables already in the
// environment, so edits made since startup take effect. A missing file is not
// an error.
func ReloadDotEnv(path string) error {
	if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from defaults, the YAML file at path (if non-empty)
// and the environment as seen through lookup (os.LookupEnv when nil).
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v, ok := get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	setSize := func(key string, dst *SizeBytes) {
		if v, ok := get(key); ok {
			s, err := parseSize(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = s
		}
	}

	if v, ok := get("HOST"); ok {
		c.Host = v
	}
	setInt("PORT", &c.Port)
	setInt("WORKERS", &c.Workers)
	setInt("QUEUE_SIZE", &c.QueueSize)
	setDuration("READ_TIMEOUT", &c.ReadTimeout)
	setDuration("WRITE_TIMEOUT", &c.WriteTimeout)
	setDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	setSize("MAX_BODY_BYTES", &c.MaxBodyBytes)
	setSize("MAX_HEADER_BYTES", &c.MaxHeaderBytes)
	if v, ok := get("ACCEPT_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sACCEPT_RATE: %w", EnvPrefix, err))
		} else {
			c.AcceptRate = f
		}
	}
	setInt("ACCEPT_BURST", &c.AcceptBurst)
	if v, ok := get("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMETRICS: %w", EnvPrefix, err))
		} else {
			c.Metrics = b
		}
	}
	return errors.Join(errs...)
}

// Duration unmarshals from "5s"-style strings or plain seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return Duration(d), nil
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "1MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = v
	return nil
}

// Int64 returns the size as an int64.
func (s SizeBytes) Int64() int64 { return int64(s) }

// String renders the size the way operators write it.
func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	v, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %q", raw)
	}
	return SizeBytes(v), nil
}
