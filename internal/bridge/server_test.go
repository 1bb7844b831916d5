package bridge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s *Server, method, url string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRelayBroadcast(t *testing.T) {
	s := NewServer(Config{}, nil)
	for _, node := range []string{"A", "B", "C"} {
		w := do(t, s, http.MethodPost, "/api/v1/nodes?node="+node, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Equal(t, []string{"A", "B", "C"}, s.Nodes())

	w := do(t, s, http.MethodPut, "/api/v1/toradio?node=A", []byte(`{"id":1}`))
	require.Equal(t, http.StatusOK, w.Code)

	for _, node := range []string{"B", "C"} {
		w = do(t, s, http.MethodGet, "/api/v1/fromradio?node="+node, nil)
		assert.Equal(t, http.StatusOK, w.Code, node)
		assert.Equal(t, `{"id":1}`, w.Body.String(), node)
	}

	w = do(t, s, http.MethodGet, "/api/v1/fromradio?node=A", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "sender does not hear itself")

	w = do(t, s, http.MethodGet, "/api/v1/fromradio?node=B", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRelayMailboxDropsOldest(t *testing.T) {
	s := NewServer(Config{MailboxSize: 2}, nil)
	do(t, s, http.MethodPost, "/api/v1/nodes?node=A", nil)
	do(t, s, http.MethodPost, "/api/v1/nodes?node=B", nil)

	for _, frame := range []string{"1", "2", "3"} {
		do(t, s, http.MethodPut, "/api/v1/toradio?node=A", []byte(frame))
	}

	w := do(t, s, http.MethodGet, "/api/v1/fromradio?node=B", nil)
	assert.Equal(t, "2", w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, uint64(3), status.Relayed)
	assert.Equal(t, uint64(1), status.Dropped)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, status.Nodes)
}

func TestRelayRejectsUnknownNodes(t *testing.T) {
	s := NewServer(Config{}, nil)

	w := do(t, s, http.MethodPut, "/api/v1/toradio?node=ghost", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/fromradio?node=ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/fromradio", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelayUnregister(t *testing.T) {
	s := NewServer(Config{}, nil)
	do(t, s, http.MethodPost, "/api/v1/nodes?node=A", nil)
	w := do(t, s, http.MethodDelete, "/api/v1/nodes?node=A", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, s.Nodes())
}

func TestRelayRejectsLargeFrames(t *testing.T) {
	s := NewServer(Config{}, nil)
	do(t, s, http.MethodPost, "/api/v1/nodes?node=A", nil)
	w := do(t, s, http.MethodPut, "/api/v1/toradio?node=A", []byte(strings.Repeat("x", maxFrameBytes+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
