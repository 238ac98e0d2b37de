package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosterDisabledIsNoop(t *testing.T) {
	p := NewPoster("")
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Post(context.Background(), "buyer-1", "hello"))
}

func TestPosterDeliversMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewPoster(srv.URL)
	require.NoError(t, p.Post(context.Background(), "buyer-1", "payment received"))
	assert.Equal(t, "buyer-1", got["buyerId"])
	assert.Equal(t, "payment received", got["message"])
}

func TestPosterRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPoster(srv.URL)
	require.NoError(t, p.Post(context.Background(), "buyer-1", "hello"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPosterDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := NewPoster(srv.URL)
	require.Error(t, p.Post(context.Background(), "buyer-1", "hello"))
	assert.Equal(t, int32(1), calls.Load())
}
