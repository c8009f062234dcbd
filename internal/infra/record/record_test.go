package record

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateAndResolve(t *testing.T) {
	records := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-magic") != "open-sesame" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/records":
			var in recordPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			records["r1"] = in.Data
			json.NewEncoder(w).Encode(recordPayload{ID: "r1"})
		case r.Method == http.MethodGet && r.URL.Path == "/records/r1":
			json.NewEncoder(w).Encode(recordPayload{ID: "r1", Data: records["r1"]})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:     srv.URL,
		HeaderKey:   "x-magic",
		HeaderValue: "open-sesame",
		Timeout:     2 * time.Second,
	})

	id := c.Create(context.Background(), "#payload")
	require.Equal(t, "r1", id)

	data, err := c.Resolve(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "#payload", data)
}

func TestClient_CreateDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	assert.Empty(t, c.Create(context.Background(), "#payload"))
}

func TestClient_Unconfigured(t *testing.T) {
	c := New(Options{})

	assert.False(t, c.Enabled())
	assert.Empty(t, c.Create(context.Background(), "#payload"))

	_, err := c.Resolve(context.Background(), "r1")
	assert.Error(t, err)
}

func TestClient_ResolveUnknownID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Resolve(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
