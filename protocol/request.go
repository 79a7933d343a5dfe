// File: protocol/request.go
// Package protocol implements the HTTP/1.1 request parser and response writer
// used by hioload-todo. It works on plain readers and writers so it can be
// exercised without sockets.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/momentics/hioload-todo/api"
)

const (
	// DefaultMaxHeaderBytes bounds the request line plus all header lines.
	DefaultMaxHeaderBytes = 8192
	// DefaultMaxBodyBytes bounds Content-Length.
	DefaultMaxBodyBytes = 1 << 20
)

// Limits caps how much a single request may make the server buffer.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxHeaderBytes: DefaultMaxHeaderBytes, MaxBodyBytes: DefaultMaxBodyBytes}
}

// Request is one parsed HTTP request.
type Request struct {
	Method     string
	Target     string // request-target as sent
	Path       string // Target without the query component
	RawQuery   string
	Proto      string
	Header     Header
	Body       []byte
	RemoteAddr string
}

// ReadRequest parses exactly one request from br. Once the request line has
// been parsed, a later failure returns the partial request alongside the error
// so callers can log its method and path.
func ReadRequest(br *bufio.Reader, lim Limits) (*Request, error) {
	if lim.MaxHeaderBytes <= 0 {
		lim.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if lim.MaxBodyBytes <= 0 {
		lim.MaxBodyBytes = DefaultMaxBodyBytes
	}
	budget := lim.MaxHeaderBytes

	var line string
	var err error
	// Tolerate stray empty lines before the request line.
	for line == "" {
		if line, err = readLine(br, &budget); err != nil {
			return nil, readError(err, "Invalid request line.")
		}
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	for {
		line, err = readLine(br, &budget)
		if err != nil {
			return req, readError(err, "Incomplete request headers.")
		}
		if line == "" {
			break
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return req, err
		}
		req.Header.Set(name, value)
	}

	n, err := contentLength(req.Header)
	if err != nil {
		return req, err
	}
	if n > lim.MaxBodyBytes {
		return req, api.NewError(api.ErrCodeBodyTooLarge, api.ErrBodyTooLarge.Message).
			WithContext("content_length", n).WithContext("limit", lim.MaxBodyBytes)
	}
	if n > 0 {
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return req, readError(err, "Request body shorter than Content-Length.")
		}
		req.Body = body
	}
	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, malformed("Invalid request line.").WithContext("line", line)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if !isToken(method) {
		return nil, malformed("Invalid request method.").WithContext("method", method)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, malformed("Invalid request target.").WithContext("target", target)
	}
	if !strings.HasPrefix(proto, "HTTP/") {
		return nil, malformed("Invalid protocol version.").WithContext("proto", proto)
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return nil, api.NewError(api.ErrCodeVersionNotSupported, api.ErrVersionNotSupported.Message).
			WithContext("proto", proto)
	}
	path, query, _ := strings.Cut(target, "?")
	return &Request{
		Method:   method,
		Target:   target,
		Path:     path,
		RawQuery: query,
		Proto:    proto,
		Header:   make(Header),
	}, nil
}

func parseHeaderLine(line string) (string, string, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", malformed("Invalid header format.").WithContext("line", line)
	}
	return name, strings.TrimSpace(value), nil
}

func contentLength(h Header) (int64, error) {
	raw := h.Get("Content-Length")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, malformed("Invalid Content-Length.").WithContext("content_length", raw)
	}
	return n, nil
}

// readLine returns one line without its CRLF/LF terminator, charging its
// length against budget.
func readLine(br *bufio.Reader, budget *int) (string, error) {
	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		*budget -= len(frag)
		if *budget < 0 {
			return "", api.NewError(api.ErrCodeHeadersTooLarge, api.ErrHeadersTooLarge.Message)
		}
		line = append(line, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return "", err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// readError classifies a read failure: deadline expiry becomes a timeout,
// anything else means the peer sent less than a full request.
func readError(err error, msg string) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return err
	}
	if isTimeout(err) {
		return api.NewError(api.ErrCodeTimeout, api.ErrTimeout.Message).Wrap(err)
	}
	return malformed(msg).Wrap(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func malformed(msg string) *api.Error {
	return api.NewError(api.ErrCodeMalformedRequest, msg)
}

// isToken reports whether s is a non-empty RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
