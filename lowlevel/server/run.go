// File: lowlevel/server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accept loop and graceful teardown.

package server

import (
	"context"
	"errors"
	"net"
	"time"
)

// Run accepts connections until ctx is cancelled or Shutdown is called. It
// then stops accepting, lets in-flight and queued exchanges finish within
// ShutdownTimeout and joins the pool.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer close(s.doneCh)

	if err := s.Listen(ctx); err != nil {
		s.executor.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.shutdownCh:
		case <-runCtx.Done():
		}
		cancel()
		s.listener.Close()
	}()

	s.log.Info("server listening",
		"addr", s.listener.Addr().String(),
		"workers", s.executor.NumWorkers(),
		"queue_size", s.cfg.QueueSize,
		"max_body", s.cfg.MaxBodyBytes.String(),
	)

	acceptErr := s.acceptLoop(runCtx)

	drained := make(chan struct{})
	go func() {
		s.executor.Close()
		close(drained)
	}()
	select {
	case <-drained:
		s.log.Info("server stopped")
	case <-time.After(s.cfg.ShutdownTimeout.D()):
		s.log.Error("shutdown timed out", "stats", s.executor.Stats())
		return ErrShutdownTimeout
	}
	return acceptErr
}

func (s *Server) acceptLoop(ctx context.Context) error {
	var tempDelay time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var te interface{ Temporary() bool }
			if errors.As(err, &te) && te.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.log.Error("accept failed, retrying", "err", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			s.log.Error("accept failed", "err", err)
			return err
		}
		tempDelay = 0
		if s.metrics != nil {
			s.metrics.ConnectionAccepted()
		}

		// Blocks while the backlog is full; that is the backpressure.
		if err := s.executor.Submit(ctx, func() { s.serveConn(conn) }); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("dispatch failed", "remote", conn.RemoteAddr().String(), "err", err)
			return err
		}
	}
}

// Shutdown signals Run to stop and waits until it has returned or ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.shutdownCh) })

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		s.executor.Close()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
		return nil
	}

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
