// File: highlevel/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package highlevel maps parsed HTTP requests onto Todo store operations.
// It is the only layer that decides HTTP status codes: the store and the codec
// report typed api errors, and the router turns them into responses.
package highlevel

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/momentics/hioload-todo/api"
	"github.com/momentics/hioload-todo/control"
	"github.com/momentics/hioload-todo/protocol"
)

// Params holds named path parameters, e.g. "id" for /todos/:id.
type Params map[string]string

// RouteContext describes the route that matched a request.
type RouteContext struct {
	Route  string // registered pattern, or "unmatched"
	Params Params
}

// HandlerFunc serves one request. A non-nil error is turned into an error
// response by the router.
type HandlerFunc func(req *protocol.Request, rc RouteContext) (*protocol.Response, error)

// Middleware is a function that wraps a handler; the first registered is outermost.
type Middleware func(next HandlerFunc) HandlerFunc

// unmatchedRoute labels requests that hit no registered pattern.
const unmatchedRoute = "unmatched"

// otherMethod replaces the method label of unmatched requests, whose method is
// arbitrary client input.
const otherMethod = "other"

type route struct {
	method     string
	pattern    string
	regex      *regexp.Regexp // nil for static patterns
	paramNames []string
	handler    HandlerFunc
}

// Router dispatches requests by method and path.
type Router struct {
	mu         sync.RWMutex
	static     map[string]*route // "METHOD path"
	patterns   []*route          // in registration order
	middleware []Middleware
	log        *slog.Logger
	metrics    *control.Metrics
}

// NewRouter creates an empty router. metrics may be nil.
func NewRouter(log *slog.Logger, metrics *control.Metrics) *Router {
	r := &Router{
		static:  make(map[string]*route),
		log:     log,
		metrics: metrics,
	}
	if metrics != nil {
		r.middleware = append(r.middleware, MetricsMiddleware(metrics))
	}
	return r
}

// Handle registers handler for method and pattern. Segments of the form
// ":name" capture one path segment.
func (r *Router) Handle(method, pattern string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := &route{method: method, pattern: pattern, handler: handler}
	if !containsParam(pattern) {
		r.static[method+" "+pattern] = rt
		return
	}
	regexPattern, names := convertToRegex(pattern)
	rt.regex = regexp.MustCompile("^" + regexPattern + "$")
	rt.paramNames = names
	r.patterns = append(r.patterns, rt)
}

// GET registers a handler for GET method on the specified pattern.
func (r *Router) GET(pattern string, h HandlerFunc) { r.Handle(http.MethodGet, pattern, h) }

// POST registers a handler for POST method on the specified pattern.
func (r *Router) POST(pattern string, h HandlerFunc) { r.Handle(http.MethodPost, pattern, h) }

// PUT registers a handler for PUT method on the specified pattern.
func (r *Router) PUT(pattern string, h HandlerFunc) { r.Handle(http.MethodPut, pattern, h) }

// DELETE registers a handler for DELETE method on the specified pattern.
func (r *Router) DELETE(pattern string, h HandlerFunc) { r.Handle(http.MethodDelete, pattern, h) }

// Use adds middleware to the router's middleware chain.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Serve routes req and always returns a response.
func (r *Router) Serve(req *protocol.Request) *protocol.Response {
	h, rc := r.match(req.Method, req.Path)
	resp, err := h(req, rc)
	if err != nil {
		return r.RespondError(req, err)
	}
	return resp
}

// RespondError logs err with request context and builds the client-facing
// error response. req may be nil or partially filled when the request could
// not be parsed.
func (r *Router) RespondError(req *protocol.Request, err error) *protocol.Response {
	status := StatusFor(err)
	code := api.CodeOf(err)
	method, path, remote := "-", "-", "-"
	if req != nil {
		method, path, remote = orDash(req.Method), orDash(req.Path), orDash(req.RemoteAddr)
	}
	r.log.Error("request failed",
		"method", method,
		"path", path,
		"remote", remote,
		"status", status,
		"kind", code.String(),
		"err", err.Error(),
	)
	if r.metrics != nil {
		r.metrics.ObserveError(code.String())
	}

	msg := api.MessageOf(err)
	if status == http.StatusInternalServerError {
		msg = api.ErrInternal.Message
	}
	resp, encErr := protocol.NewJSONResponse(status, errorBody{Error: msg})
	if encErr != nil {
		return protocol.NewResponse(http.StatusInternalServerError, protocol.ContentTypeJSON,
			[]byte(`{"error":"Internal server error."}`))
	}
	return resp
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch api.CodeOf(err) {
	case api.ErrCodeOK:
		return http.StatusOK
	case api.ErrCodeMalformedRequest, api.ErrCodeBadRequest, api.ErrCodeValidation:
		return http.StatusBadRequest
	case api.ErrCodeNotFound:
		return http.StatusNotFound
	case api.ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case api.ErrCodeHeadersTooLarge:
		return http.StatusRequestHeaderFieldsTooLarge
	case api.ErrCodeVersionNotSupported:
		return http.StatusHTTPVersionNotSupported
	case api.ErrCodeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// match finds the handler for method and path, already wrapped in middleware.
func (r *Router) match(method, path string) (HandlerFunc, RouteContext) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rt, ok := r.static[method+" "+path]; ok {
		return r.chain(rt.handler), RouteContext{Route: rt.pattern}
	}
	for _, rt := range r.patterns {
		if rt.method != method {
			continue
		}
		m := rt.regex.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(Params, len(rt.paramNames))
		for i, name := range rt.paramNames {
			params[name] = m[i+1]
		}
		return r.chain(rt.handler), RouteContext{Route: rt.pattern, Params: params}
	}
	return r.chain(routeNotFound), RouteContext{Route: unmatchedRoute}
}

func (r *Router) chain(h HandlerFunc) HandlerFunc {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

func routeNotFound(*protocol.Request, RouteContext) (*protocol.Response, error) {
	return nil, api.NewError(api.ErrCodeNotFound, "route not found")
}

// MetricsMiddleware records count and latency per route and status.
func MetricsMiddleware(m *control.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(req *protocol.Request, rc RouteContext) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(req, rc)
			status := StatusFor(err)
			if err == nil && resp != nil {
				status = resp.StatusCode
			}
			method := req.Method
			if rc.Route == unmatchedRoute {
				method = otherMethod
			}
			m.ObserveRequest(method, rc.Route, status, time.Since(start))
			return resp, err
		}
	}
}

// containsParam checks if a pattern contains parameter placeholders (e.g., :id)
func containsParam(pattern string) bool {
	return strings.Contains(pattern, "/:")
}

// convertToRegex converts a parameterized route to a regex pattern and
// extracts parameter names. Each parameter matches exactly one segment.
func convertToRegex(pattern string) (string, []string) {
	parts := strings.Split(pattern, "/")
	regexParts := make([]string, 0, len(parts))
	var params []string
	for _, part := range parts {
		if strings.HasPrefix(part, ":") {
			params = append(params, strings.TrimPrefix(part, ":"))
			regexParts = append(regexParts, `([^/]*)`)
			continue
		}
		regexParts = append(regexParts, regexp.QuoteMeta(part))
	}
	return strings.Join(regexParts, "/"), params
}
