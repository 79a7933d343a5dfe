// File: internal/store/store.go
// Package store implements the in-memory Todo collection.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Store is the sole owner of Todo lifetime. Writers take the exclusive lock,
// snapshot readers the shared one, so no caller ever observes a half-applied
// mutation. Ids come from a monotonic counter and are never reused.

package store

import (
	"strings"
	"sync"

	"github.com/momentics/hioload-todo/api"
)

// Todo is one task.
type Todo struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Patch carries an update; nil fields are left unchanged.
type Patch struct {
	Title     *string
	Completed *bool
}

// Store holds Todos keyed by id, remembering insertion order.
type Store struct {
	mu     sync.RWMutex
	nextID uint64
	items  map[uint64]*Todo
	order  []uint64 // insertion order, compacted lazily on delete
}

// New creates an empty store whose first id is 1.
func New() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[uint64]*Todo),
	}
}

// Create inserts a new Todo with completed=false and returns a copy.
func (s *Store) Create(title string) (Todo, error) {
	if err := validateTitle(title); err != nil {
		return Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	t := &Todo{ID: id, Title: title}
	s.items[id] = t
	s.order = append(s.order, id)
	return *t, nil
}

// Get returns a copy of the Todo with the given id.
func (s *Store) Get(id uint64) (Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.items[id]
	if !ok {
		return Todo{}, notFound(id)
	}
	return *t, nil
}

// List returns a snapshot of all Todos in insertion order.
func (s *Store) List() []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Todo, 0, len(s.items))
	for _, id := range s.order {
		if t, ok := s.items[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Update applies p to the Todo with the given id. Validation happens before
// any field is touched.
func (s *Store) Update(id uint64, p Patch) (Todo, error) {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return Todo{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return Todo{}, notFound(id)
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return *t, nil
}

// Delete removes the Todo. Its id is retired for good.
func (s *Store) Delete(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return notFound(id)
	}
	delete(s.items, id)
	// Compact once stale ids dominate the order slice.
	if len(s.order) > 32 && len(s.order) > 2*len(s.items) {
		kept := make([]uint64, 0, len(s.items))
		for _, oid := range s.order {
			if _, ok := s.items[oid]; ok {
				kept = append(kept, oid)
			}
		}
		s.order = kept
	}
	return nil
}

// Len returns the number of live Todos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return api.NewError(api.ErrCodeValidation, "Title cannot be empty.")
	}
	return nil
}

func notFound(id uint64) error {
	return api.NewError(api.ErrCodeNotFound, "Todo not found.").WithContext("id", id)
}
