// File: lowlevel/server/server.go
// Package server binds the TCP listener, feeds accepted connections to the
// worker pool and serves each one with a single HTTP exchange.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/momentics/hioload-todo/adapters"
	"github.com/momentics/hioload-todo/api"
	"github.com/momentics/hioload-todo/control"
	"github.com/momentics/hioload-todo/highlevel"
	"github.com/momentics/hioload-todo/pool"
	"github.com/momentics/hioload-todo/protocol"
)

// readBufferSize sizes the pooled per-connection readers.
const readBufferSize = 4096

var (
	ErrAlreadyRunning  = errors.New("server already running")
	ErrShutdownTimeout = errors.New("shutdown timed out waiting for in-flight connections")
)

// Server is the facade encapsulating listener, executor and router.
type Server struct {
	cfg      *control.Config
	router   *highlevel.Router
	log      *slog.Logger
	metrics  *control.Metrics // nil when disabled
	executor api.Executor
	limiter  *rate.Limiter // nil when accept rate is unlimited
	limits   protocol.Limits
	readers  *pool.ReaderPool

	mu         sync.Mutex
	listener   *Listener
	running    bool
	shutdownCh chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once
}

var _ api.GracefulShutdown = (*Server)(nil)

// NewServer constructs a Server. metrics may be nil.
func NewServer(cfg *control.Config, router *highlevel.Router, log *slog.Logger, metrics *control.Metrics) (*Server, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	executor, err := adapters.NewExecutorAdapter(cfg.Workers, cfg.QueueSize, log)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		router:   router,
		log:      log,
		metrics:  metrics,
		executor: executor,
		limits: protocol.Limits{
			MaxHeaderBytes: int(cfg.MaxHeaderBytes.Int64()),
			MaxBodyBytes:   cfg.MaxBodyBytes.Int64(),
		},
		readers:    pool.NewReaderPool(readBufferSize),
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	if metrics != nil {
		metrics.GaugeFunc("pool_workers", "Fixed number of pool workers.", func() float64 {
			return float64(executor.NumWorkers())
		})
		metrics.GaugeFunc("pool_queued", "Accepted connections waiting for a worker.", func() float64 {
			return float64(executor.Stats().Queued)
		})
		metrics.GaugeFunc("pool_active", "Connections being served.", func() float64 {
			return float64(executor.Stats().Active)
		})
		metrics.CounterFunc("pool_panics_total", "Tasks that panicked inside the pool.", func() float64 {
			return float64(executor.Stats().Panics)
		})
	}
	return s, nil
}

// Listen binds the configured address. Run calls it when needed; calling it
// first lets callers learn the port chosen for ":0".
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := NewListener(ctx, s.cfg.Addr())
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Executor exposes the worker pool, mostly for stats.
func (s *Server) Executor() api.Executor {
	return s.executor
}
