package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestHTTPPeer_ListIDsAndFetchRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/records":
			_ = json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a", "b"}, "next_cursor": ""})
		case r.URL.Path == "/records/a":
			rec := contracts.FederationRecord{ID: "a", PayloadHash: "h1"}
			_ = json.NewEncoder(w).Encode(rec)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	peer := NewHTTPPeer(srv.URL, time.Second)

	ids, next, err := peer.ListIDs(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Empty(t, next)

	rec, err := peer.FetchRecord(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.RecordID())
}

func TestHTTPPeer_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	peer := NewHTTPPeer(srv.URL, time.Second)
	_, _, err := peer.ListIDs(context.Background(), "")
	assert.Error(t, err)
}
