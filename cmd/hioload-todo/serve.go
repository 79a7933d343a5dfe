// File: cmd/hioload-todo/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-todo/control"
	"github.com/momentics/hioload-todo/highlevel"
	"github.com/momentics/hioload-todo/internal/logging"
	"github.com/momentics/hioload-todo/internal/store"
	"github.com/momentics/hioload-todo/lowlevel/server"
)

type serveFlags struct {
	config   string
	envFile  string
	host     string
	port     int
	workers  int
	logFile  string
	logLevel string
	debug    bool
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Todo server",
		Long: `Start the Todo server.

Configuration is read from defaults, then the YAML file given by --config,
then HIOLOAD_TODO_* environment variables (a .env file is loaded first),
then the flags below. SIGHUP re-reads the file and applies log_level.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cmd, cfg, &f)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Path to .env file (missing is fine)")
	cmd.Flags().StringVar(&f.host, "host", "", "Interface to bind")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "TCP port to listen on")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of pool workers")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Error log file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.debug, "debug-routes", false, "Serve GET /debug/state")

	return cmd
}

// loadConfig builds the effective serve config, flags taking precedence.
// On reload the .env file overrides variables set by the previous load.
func loadConfig(cmd *cobra.Command, f *serveFlags, reload bool) (*control.Config, error) {
	loadEnv := control.LoadDotEnv
	if reload {
		loadEnv = control.ReloadDotEnv
	}
	if err := loadEnv(f.envFile); err != nil {
		return nil, err
	}
	cfg, err := control.Load(f.config, nil)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context, cmd *cobra.Command, cfg *control.Config, f *serveFlags) error {
	sink, log, err := logging.New(logging.Options{Path: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer sink.Close()

	todos := store.New()

	var metrics *control.Metrics
	if cfg.Metrics {
		metrics = control.NewMetrics()
		metrics.GaugeFunc("todos", "Todos currently stored.", func() float64 {
			return float64(todos.Len())
		})
		metrics.CounterFunc("log_dropped_total", "Log records dropped because the sink was full.", func() float64 {
			return float64(sink.Dropped())
		})
	}

	router := highlevel.NewRouter(log, metrics)
	highlevel.NewTodoHandlers(todos).Register(router)
	if metrics != nil {
		router.GET("/metrics", highlevel.MetricsHandler(metrics))
	}

	srv, err := server.NewServer(cfg, router, log, metrics)
	if err != nil {
		return err
	}

	if f.debug {
		started := time.Now()
		probes := control.NewDebugProbes()
		probes.RegisterProbe("todos", func() any { return todos.Len() })
		probes.RegisterProbe("pool", func() any { return srv.Executor().Stats() })
		probes.RegisterProbe("log_level", func() any { return sink.Level().String() })
		probes.RegisterProbe("log_dropped", func() any { return sink.Dropped() })
		probes.RegisterProbe("uptime", func() any { return humanize.Time(started) })
		router.GET("/debug/state", highlevel.StateHandler(probes))
	}

	reloader := control.NewReloader(func() (*control.Config, error) {
		return loadConfig(cmd, f, true)
	})
	reloader.RegisterReloadHook(func(c *control.Config) {
		sink.SetLevel(c.LogLevel)
	})
	go watchReload(ctx, reloader, log)

	if err := srv.Listen(ctx); err != nil {
		log.Error("listen failed", "addr", cfg.Addr(), "err", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server running on http://%s (%d workers, body limit %s, log %s)\n",
		srv.Addr(), cfg.Workers, cfg.MaxBodyBytes, cfg.LogFile)

	err = srv.Run(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return err
}

// watchReload applies reload hooks on every SIGHUP until ctx ends.
func watchReload(ctx context.Context, r *control.Reloader, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := r.Reload()
			if err != nil {
				log.Error("config reload failed", "err", err)
				continue
			}
			log.Warn("config reloaded", "log_level", cfg.LogLevel)
		}
	}
}
