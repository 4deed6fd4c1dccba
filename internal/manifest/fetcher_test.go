package manifest_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestFetcher_Fetch(t *testing.T) {
	t.Run("fetches and parses a manifest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"org.example","name":"Example","resources":["stream"]}`))
		}))
		defer srv.Close()

		f := manifest.NewFetcher(testLogger(), nil, &manifest.FetcherConfig{Timeout: 5 * time.Second})
		m, err := f.Fetch(context.Background(), srv.URL+"/manifest.json")
		require.NoError(t, err)
		assert.Equal(t, "org.example", m.ID)
		require.Len(t, m.Resources, 1)
		assert.Equal(t, "stream", m.Resources[0].Name)
	})

	t.Run("rejects non-200 responses", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		f := manifest.NewFetcher(testLogger(), nil, nil)
		_, err := f.Fetch(context.Background(), srv.URL+"/manifest.json")
		assert.Error(t, err)
	})

	t.Run("rejects invalid manifests", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
		}))
		defer srv.Close()

		f := manifest.NewFetcher(testLogger(), nil, nil)
		_, err := f.Fetch(context.Background(), srv.URL+"/manifest.json")
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		f := manifest.NewFetcher(testLogger(), nil, nil)
		_, err := f.Fetch(ctx, srv.URL+"/manifest.json")
		assert.Error(t, err)
	})
}
