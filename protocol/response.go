// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// ContentTypeJSON is sent with every JSON body.
const ContentTypeJSON = "application/json; charset=UTF-8"

// Response is one HTTP response ready to be serialized.
type Response struct {
	StatusCode int
	Reason     string // defaults to StatusText(StatusCode)
	Header     Header
	Body       []byte
}

// NewResponse builds a response with the given content type and body.
func NewResponse(status int, contentType string, body []byte) *Response {
	r := &Response{StatusCode: status, Header: make(Header), Body: body}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

// NewJSONResponse marshals v as the response body.
func NewJSONResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response body: %w", err)
	}
	return NewResponse(status, ContentTypeJSON, body), nil
}

// StatusText returns the reason phrase for code.
func StatusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Unknown Status"
}

// WriteResponse serializes resp to w as status line, headers, blank line and
// body. Content-Length always reflects len(resp.Body).
func WriteResponse(w io.Writer, resp *Response) error {
	reason := resp.Reason
	if reason == "" {
		reason = StatusText(resp.StatusCode)
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(resp.Body))
	fmt.Fprintf(&buf, "HTTP/1.1 %03d %s\r\n", resp.StatusCode, reason)

	hdr := make(Header, len(resp.Header)+1)
	for k, v := range resp.Header {
		hdr.Set(k, v)
	}
	hdr.Del("Transfer-Encoding")
	hdr.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	for _, k := range hdr.sortedKeys() {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, hdr[k])
	}
	buf.WriteString("\r\n")
	buf.Write(resp.Body)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
