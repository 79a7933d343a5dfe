// File: highlevel/todos.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Todo CRUD handlers.

package highlevel

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/momentics/hioload-todo/api"
	"github.com/momentics/hioload-todo/control"
	"github.com/momentics/hioload-todo/internal/store"
	"github.com/momentics/hioload-todo/protocol"
)

// DeletedMessage confirms a successful DELETE.
const DeletedMessage = "Todo has been deleted."

// TodoHandlers exposes the store over the routes registered by Register.
type TodoHandlers struct {
	store *store.Store
}

// NewTodoHandlers binds handlers to s.
func NewTodoHandlers(s *store.Store) *TodoHandlers {
	return &TodoHandlers{store: s}
}

// Register installs the CRUD routes on r.
func (h *TodoHandlers) Register(r *Router) {
	r.GET("/todos", h.list)
	r.POST("/todos", h.create)
	r.GET("/todos/:id", h.get)
	r.PUT("/todos/:id", h.update)
	r.DELETE("/todos/:id", h.delete)
}

func (h *TodoHandlers) list(*protocol.Request, RouteContext) (*protocol.Response, error) {
	return protocol.NewJSONResponse(http.StatusOK, h.store.List())
}

func (h *TodoHandlers) get(_ *protocol.Request, rc RouteContext) (*protocol.Response, error) {
	id, err := parseID(rc.Params["id"])
	if err != nil {
		return nil, err
	}
	todo, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	return protocol.NewJSONResponse(http.StatusOK, todo)
}

func (h *TodoHandlers) create(req *protocol.Request, _ RouteContext) (*protocol.Response, error) {
	fields, err := decodeObject(req.Body)
	if err != nil {
		return nil, err
	}
	raw, ok := fields["title"]
	if !ok {
		return nil, api.NewError(api.ErrCodeValidation, "Title is required.")
	}
	title, err := decodeTitle(raw)
	if err != nil {
		return nil, err
	}
	todo, err := h.store.Create(title)
	if err != nil {
		return nil, err
	}
	return protocol.NewJSONResponse(http.StatusCreated, todo)
}

func (h *TodoHandlers) update(req *protocol.Request, rc RouteContext) (*protocol.Response, error) {
	id, err := parseID(rc.Params["id"])
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(req.Body)
	if err != nil {
		return nil, err
	}

	var patch store.Patch
	if raw, ok := fields["title"]; ok {
		title, err := decodeTitle(raw)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if raw, ok := fields["completed"]; ok {
		var completed bool
		if isNull(raw) || json.Unmarshal(raw, &completed) != nil {
			return nil, api.NewError(api.ErrCodeValidation, "The 'completed' field must be of type bool.")
		}
		patch.Completed = &completed
	}

	todo, err := h.store.Update(id, patch)
	if err != nil {
		return nil, err
	}
	return protocol.NewJSONResponse(http.StatusOK, todo)
}

func (h *TodoHandlers) delete(_ *protocol.Request, rc RouteContext) (*protocol.Response, error) {
	id, err := parseID(rc.Params["id"])
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(id); err != nil {
		return nil, err
	}
	return protocol.NewJSONResponse(http.StatusOK, map[string]string{"message": DeletedMessage})
}

// MetricsHandler serves the Prometheus text exposition of m.
func MetricsHandler(m *control.Metrics) HandlerFunc {
	return func(*protocol.Request, RouteContext) (*protocol.Response, error) {
		body, err := m.Render()
		if err != nil {
			return nil, api.NewError(api.ErrCodeInternal, api.ErrInternal.Message).Wrap(err)
		}
		return protocol.NewResponse(http.StatusOK, control.ExpositionContentType, body), nil
	}
}

// StateHandler serves a JSON dump of the registered debug probes.
func StateHandler(p *control.DebugProbes) HandlerFunc {
	return func(*protocol.Request, RouteContext) (*protocol.Response, error) {
		return protocol.NewJSONResponse(http.StatusOK, p.DumpState())
	}
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, api.NewError(api.ErrCodeBadRequest, "Invalid ID.").WithContext("id", raw)
	}
	return id, nil
}

// decodeObject parses body as a JSON object, keeping values raw so each
// handler can validate types field by field.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		e := api.NewError(api.ErrCodeBadRequest, "Invalid JSON format.")
		if err != nil {
			e.Wrap(err)
		}
		return nil, e
	}
	return fields, nil
}

func decodeTitle(raw json.RawMessage) (string, error) {
	var title string
	if isNull(raw) || json.Unmarshal(raw, &title) != nil {
		return "", api.NewError(api.ErrCodeValidation, "Title must be a string.")
	}
	return title, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
