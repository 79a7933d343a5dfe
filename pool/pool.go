// File: pool/pool.go
// Package pool recycles per-connection scratch objects.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"bufio"
	"io"
	"sync"
)

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool for typed usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a SyncPool that calls creator when empty.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}

// ReaderPool hands out bufio.Readers of a fixed size bound to a connection.
type ReaderPool struct {
	p *SyncPool[*bufio.Reader]
}

// NewReaderPool returns a pool of readers with the given buffer size.
func NewReaderPool(size int) *ReaderPool {
	return &ReaderPool{p: NewSyncPool(func() *bufio.Reader {
		return bufio.NewReaderSize(nil, size)
	})}
}

// Get returns a reader reset onto r.
func (rp *ReaderPool) Get(r io.Reader) *bufio.Reader {
	br := rp.p.Get()
	br.Reset(r)
	return br
}

// Put detaches br from its source and returns it to the pool.
func (rp *ReaderPool) Put(br *bufio.Reader) {
	br.Reset(nil)
	rp.p.Put(br)
}

var _ ObjectPool[*bufio.Reader] = (*SyncPool[*bufio.Reader])(nil)
