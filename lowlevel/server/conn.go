// File: lowlevel/server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/momentics/hioload-todo/api"
	"github.com/momentics/hioload-todo/protocol"
)

// serveConn drives one exchange end to end: read a request, route it, write
// the response, close. A panic anywhere below is contained here.
func (s *Server) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	written := false
	defer conn.Close()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.log.Error("panic in connection worker",
			"remote", remote, "panic", r, "stack", string(debug.Stack()))
		if written {
			return
		}
		resp := s.router.RespondError(&protocol.Request{RemoteAddr: remote}, api.NewError(api.ErrCodeInternal, api.ErrInternal.Message))
		_ = s.writeResponse(conn, resp)
	}()

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout.D())); err != nil {
		s.log.Error("set read deadline", "remote", remote, "err", err)
		return
	}
	br := s.readers.Get(conn)
	req, err := protocol.ReadRequest(br, s.limits)
	s.readers.Put(br)

	if req == nil {
		req = &protocol.Request{}
	}
	req.RemoteAddr = remote

	var resp *protocol.Response
	if err != nil {
		resp = s.router.RespondError(req, err)
	} else {
		resp = s.router.Serve(req)
	}

	written = true
	if err := s.writeResponse(conn, resp); err != nil {
		// Nothing can be resumed on a half-written stateless exchange.
		s.log.Error("write response failed", "remote", remote, "err", err)
		if s.metrics != nil {
			s.metrics.ObserveError("write")
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *protocol.Response) error {
	if resp.Header == nil {
		resp.Header = make(protocol.Header)
	}
	resp.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	resp.Header.Set("Connection", "close")
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout.D())); err != nil {
		return err
	}
	return protocol.WriteResponse(conn, resp)
}
