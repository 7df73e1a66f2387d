package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		raw, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(raw, &req))

		assert.Equal(t, "store", req["action"])
		assert.Equal(t, "acme-corp", req["organization_name"])
		assert.Equal(t, "req-1", req["request_id"])
		assert.Equal(t, "media", req["stage_name"])
		assert.Equal(t, "coverage skews positive", req["claude_analysis"])

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Store(context.Background(), "acme-corp", "req-1", "media", "coverage skews positive")
	require.NoError(t, err)
}

func TestStore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sink unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Store(context.Background(), "acme-corp", "req-1", "media", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}
