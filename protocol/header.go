// File: protocol/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"net/textproto"
	"sort"
)

// Header maps canonical header names to a single value. Names are
// canonicalized on every access, so lookups are case-insensitive and a
// repeated header keeps its last value.
type Header map[string]string

// Get returns the value for name, or "".
func (h Header) Get(name string) string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

// Set stores value under name, replacing any previous value.
func (h Header) Set(name, value string) {
	h[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	return ok
}

// Del removes name.
func (h Header) Del(name string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(name))
}

// sortedKeys gives a stable serialization order.
func (h Header) sortedKeys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
