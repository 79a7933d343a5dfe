// File: lowlevel/server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
)

// Listener accepts TCP connections for the todo server.
type Listener struct {
	ln net.Listener
}

// NewListener binds addr with the platform socket options applied.
func NewListener(ctx context.Context, addr string) (*Listener, error) {
	lc := net.ListenConfig{Control: controlSocket}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept waits for and returns the next connection.
func (l *Listener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close shuts down the listener.
func (l *Listener) Close() error {
	return l.ln.Close()
}
