package notify_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestRender(t *testing.T) {
	t.Run("summary line counts users and groups", func(t *testing.T) {
		out := notify.Render(notify.Report{GroupsCount: 2, UsersCount: 7})
		assert.Contains(t, out, "Synced 7 user(s) across 2 group(s)")
		assert.NotContains(t, out, "failed")
	})

	t.Run("failed users are called out", func(t *testing.T) {
		out := notify.Render(notify.Report{GroupsCount: 1, UsersCount: 4, FailedUsers: 1})
		assert.Contains(t, out, ", 1 failed")
	})

	t.Run("diff blocks list changes with sign prefixes", func(t *testing.T) {
		out := notify.Render(notify.Report{
			GroupsCount: 1,
			UsersCount:  3,
			DiffsByAddon: map[string]manifest.Diff{
				"Example": {
					AddedResources:   []string{"meta"},
					RemovedResources: []string{"catalog"},
					AddedCatalogs:    []string{"movie/top"},
				},
			},
			SourceLabel: "scheduled",
		})
		assert.Contains(t, out, "Example:\n")
		assert.Contains(t, out, "+ resource meta\n")
		assert.Contains(t, out, "- resource catalog\n")
		assert.Contains(t, out, "+ catalog movie/top\n")
		assert.Contains(t, out, "source: scheduled")
	})

	t.Run("addon blocks are rendered in sorted order", func(t *testing.T) {
		out := notify.Render(notify.Report{
			UsersCount: 1,
			DiffsByAddon: map[string]manifest.Diff{
				"Zebra": {AddedResources: []string{"stream"}},
				"Alpha": {AddedResources: []string{"meta"}},
			},
		})
		assert.Less(t, strings.Index(out, "Alpha:"), strings.Index(out, "Zebra:"))
	})

	t.Run("empty diffs are omitted", func(t *testing.T) {
		out := notify.Render(notify.Report{
			UsersCount:   1,
			DiffsByAddon: map[string]manifest.Diff{"Quiet": {}},
		})
		assert.NotContains(t, out, "Quiet")
	})
}

func TestDispatcher_Notify(t *testing.T) {
	t.Run("posts a discord-style payload", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer srv.Close()

		d := notify.NewDispatcher(quietLogger())
		d.Notify(context.Background(), srv.URL, notify.Report{GroupsCount: 1, UsersCount: 2})

		assert.Equal(t, "addon-herd", got["username"])
		assert.Contains(t, got["content"], "Synced 2 user(s)")
	})

	t.Run("empty webhook URL is a no-op", func(t *testing.T) {
		d := notify.NewDispatcher(quietLogger())
		d.Notify(context.Background(), "", notify.Report{UsersCount: 1})
	})

	t.Run("delivery failures are swallowed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		d := notify.NewDispatcher(quietLogger())
		d.Notify(context.Background(), srv.URL, notify.Report{UsersCount: 1})

		// An unreachable host is equally silent.
		d.Notify(context.Background(), "http://127.0.0.1:1/webhook", notify.Report{UsersCount: 1})
	})
}
