package protocol

import (
	"bufio"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponseFormat(t *testing.T) {
	resp, err := NewJSONResponse(201, map[string]any{"id": 1, "title": "Learn Go", "completed": false})
	require.NoError(t, err)
	resp.Header.Set("Connection", "close")
	resp.Header.Set("content-length", "999") // overridden

	var sb strings.Builder
	require.NoError(t, WriteResponse(&sb, resp))
	out := sb.String()

	head, body, ok := strings.Cut(out, "\r\n\r\n")
	require.True(t, ok)
	lines := strings.Split(head, "\r\n")
	assert.Equal(t, "HTTP/1.1 201 Created", lines[0])
	assert.Equal(t, []string{
		"Connection: close",
		"Content-Length: 45",
		"Content-Type: application/json; charset=UTF-8",
	}, lines[1:])
	assert.JSONEq(t, `{"id":1,"title":"Learn Go","completed":false}`, body)
	assert.Len(t, body, 45)
}

func TestWriteResponseParsesWithStdlib(t *testing.T) {
	resp := NewResponse(404, ContentTypeJSON, []byte(`{"error":"route not found"}`))
	var sb strings.Builder
	require.NoError(t, WriteResponse(&sb, resp))

	parsed, err := http.ReadResponse(bufio.NewReader(strings.NewReader(sb.String())), nil)
	require.NoError(t, err)
	defer parsed.Body.Close()
	assert.Equal(t, 404, parsed.StatusCode)
	assert.Equal(t, "404 Not Found", parsed.Status)
	assert.Equal(t, int64(27), parsed.ContentLength)
}

func TestWriteResponseEmptyBodyAndCustomReason(t *testing.T) {
	resp := &Response{StatusCode: 599, Reason: "Custom"}
	var sb strings.Builder
	require.NoError(t, WriteResponse(&sb, resp))
	assert.Equal(t, "HTTP/1.1 599 Custom\r\nContent-Length: 0\r\n\r\n", sb.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteResponseReportsWriteFailure(t *testing.T) {
	err := WriteResponse(failingWriter{}, NewResponse(200, "", nil))
	assert.ErrorContains(t, err, "broken pipe")
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "OK", StatusText(200))
	assert.Equal(t, "HTTP Version Not Supported", StatusText(505))
	assert.Equal(t, "Unknown Status", StatusText(799))
}

func TestHeaderCaseInsensitive(t *testing.T) {
	h := make(Header)
	h.Set("content-TYPE", "a")
	assert.Equal(t, "a", h.Get("Content-Type"))
	assert.True(t, h.Has("CONTENT-type"))
	h.Del("Content-type")
	assert.False(t, h.Has("content-type"))
}
