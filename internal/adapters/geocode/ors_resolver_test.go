package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"field-visit-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureBody = `{"features":[{"geometry":{"coordinates":[-112.074,33.4484]}}]}`

func newORSServer(t *testing.T, handler http.HandlerFunc) *ORSResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewORSResolver(ORSOptions{APIKey: "test-key", BaseURL: srv.URL, Country: "US"}, nil)
	require.NoError(t, err)
	return r
}

func TestORSGeocode(t *testing.T) {
	r := newORSServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/geocode/search", req.URL.Path)
		assert.Equal(t, "test-key", req.Header.Get("Authorization"))
		assert.Equal(t, "1 Main St", req.URL.Query().Get("text"))
		assert.Equal(t, "1", req.URL.Query().Get("size"))
		assert.Equal(t, "US", req.URL.Query().Get("boundary.country"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(featureBody))
	})

	c, err := r.ResolveVisit(context.Background(), domain.Visit{ID: "V1", PropertyAddress: "1   Main St"})
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -112.074, Lat: 33.4484}, c)
}

func TestORSGeocodeRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	r := newORSServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(featureBody))
	})

	_, err := r.Geocode(context.Background(), "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestORSGeocodeErrors(t *testing.T) {
	var hits atomic.Int32
	r := newORSServer(t, func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch req.URL.Query().Get("text") {
		case "bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad text"}`))
		case "nowhere":
			_, _ = w.Write([]byte(`{"features":[]}`))
		default:
			_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[1]}}]}`))
		}
	})
	ctx := context.Background()

	_, err := r.Geocode(ctx, "bad")
	assert.ErrorContains(t, err, "unexpected status 400")
	assert.Equal(t, int32(1), hits.Load(), "client errors are not retried")

	_, err = r.Geocode(ctx, "nowhere")
	assert.ErrorContains(t, err, "no geocode results")

	_, err = r.Geocode(ctx, "odd")
	assert.ErrorContains(t, err, "invalid coordinate format")

	_, err = r.ResolveVisit(ctx, domain.Visit{ID: "V9"})
	assert.ErrorContains(t, err, "no property address")
}

func TestNewORSResolverRequiresKey(t *testing.T) {
	_, err := NewORSResolver(ORSOptions{}, nil)
	assert.Error(t, err)
}
