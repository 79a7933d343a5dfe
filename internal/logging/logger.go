// File: internal/logging/logger.go
// Package logging provides the error log sink shared by every component.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Records are formatted by slog, copied into a bounded channel and written by a
// single goroutine, so lines never interleave and the request path never waits
// on disk. When the channel is full the record is dropped and counted.

package logging

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of pending records held before dropping.
const DefaultQueueSize = 4096

// Options configures a Sink.
type Options struct {
	// Path of the append-only log file. Empty means stderr.
	Path string
	// Level is one of debug, info, warn, error.
	Level string
	// QueueSize bounds pending records; <= 0 uses DefaultQueueSize.
	QueueSize int
	// FlushInterval controls how often buffered lines reach the file.
	FlushInterval time.Duration
}

// Sink is an asynchronous, line-oriented writer.
type Sink struct {
	ch      chan []byte
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
	file    *os.File
	out     *bufio.Writer
	level   slog.LevelVar
}

// New opens the sink and returns it together with a logger writing into it.
func New(opts Options) (*Sink, *slog.Logger, error) {
	var w io.Writer = os.Stderr
	var f *os.File
	if opts.Path != "" {
		var err error
		f, err = os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.Path, err)
		}
		w = f
	}
	s := NewSink(w, opts.QueueSize, opts.FlushInterval)
	s.file = f
	s.level.Set(ParseLevel(opts.Level))
	logger := slog.New(slog.NewTextHandler(s, &slog.HandlerOptions{Level: &s.level}))
	return s, logger, nil
}

// NewSink starts a sink over an arbitrary writer.
func NewSink(w io.Writer, queueSize int, flushEvery time.Duration) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	s := &Sink{
		ch:     make(chan []byte, queueSize),
		stopCh: make(chan struct{}),
		out:    bufio.NewWriterSize(w, 8192),
	}
	s.wg.Add(1)
	go s.loop(flushEvery)
	return s
}

// Write queues one formatted record. slog's handler calls Write once per
// record, so each call is a complete line.
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return len(p), nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case s.ch <- cp:
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

// SetLevel changes the minimum level of the logger returned by New.
func (s *Sink) SetLevel(lvl string) { s.level.Set(ParseLevel(lvl)) }

// Level reports the current minimum level.
func (s *Sink) Level() slog.Level { return s.level.Level() }

// Dropped returns the number of records discarded because the queue was full.
func (s *Sink) Dropped() int64 { return s.dropped.Load() }

// Close drains pending records, flushes and closes the file.
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	s.wg.Wait()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Sink) loop(flushEvery time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case b := <-s.ch:
			s.out.Write(b)
		case <-ticker.C:
			s.out.Flush()
		case <-s.stopCh:
			for {
				select {
				case b := <-s.ch:
					s.out.Write(b)
				default:
					s.out.Flush()
					return
				}
			}
		}
	}
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Handy for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
