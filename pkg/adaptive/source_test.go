package adaptive

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

func TestHTTPSource_ReturnsValueOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signalResponse{Value: 0.42})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	v, ok := src.Sample(context.Background())
	require.True(t, ok)
	assert.InDelta(t, 0.42, v, 1e-9)
}

func TestHTTPSource_UnavailableOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(signalResponse{Value: 0.1})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Millisecond)
	_, ok := src.Sample(context.Background())
	assert.False(t, ok)
}

func TestHTTPSource_UnavailableOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	_, ok := src.Sample(context.Background())
	assert.False(t, ok)
}

func TestHTTPSource_UnavailableOnOutOfRangeValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signalResponse{Value: 1.5})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	_, ok := src.Sample(context.Background())
	assert.False(t, ok)
}

func TestCachingSource_ServesLastGoodOnFailure(t *testing.T) {
	var available bool
	inner := fakeSource{sample: func() (float64, bool) { return 0.7, available }}
	c := NewCachingSource(inner)

	available = true
	v, ok := c.Sample(context.Background())
	require.True(t, ok)
	assert.InDelta(t, 0.7, v, 1e-9)

	available = false
	v, ok = c.Sample(context.Background())
	require.True(t, ok)
	assert.InDelta(t, 0.7, v, 1e-9)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestCachingSource_UnavailableBeforeFirstSuccess(t *testing.T) {
	inner := fakeSource{sample: func() (float64, bool) { return 0, false }}
	c := NewCachingSource(inner)

	_, ok := c.Sample(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

type fakeSource struct {
	sample func() (float64, bool)
}

func (f fakeSource) Sample(ctx context.Context) (float64, bool) {
	return f.sample()
}
