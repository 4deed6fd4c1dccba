package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/api/handlers"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEnqueuer records enqueued tasks and returns a configured error.
type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func setupSyncTestRouter(t *testing.T, queue handlers.Enqueuer) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewSyncHandler(tc.DB, nil, nil, queue)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Post("/api/v1/groups/{id}/sync/queue", handler.QueueSync)
	})

	return r, tc
}

func TestSyncHandler_QueueSync(t *testing.T) {
	t.Run("enqueues a group sync", func(t *testing.T) {
		queue := &stubEnqueuer{}
		router, tc := setupSyncTestRouter(t, queue)
		defer tc.Cleanup()

		group := testutil.CreateTestGroup(t, tc.DB, tc.Account, nil, nil)

		req := testutil.AuthenticatedRequest(t, "POST",
			"/api/v1/groups/"+group.ID.String()+"/sync/queue", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusAccepted, rr.Code)
		require.Len(t, queue.tasks, 1)
	})

	t.Run("duplicate queue request returns 409", func(t *testing.T) {
		// asynq reports a task-id collision as a wrapped sentinel.
		queue := &stubEnqueuer{err: fmt.Errorf("task already exists: %w", asynq.ErrTaskIDConflict)}
		router, tc := setupSyncTestRouter(t, queue)
		defer tc.Cleanup()

		group := testutil.CreateTestGroup(t, tc.DB, tc.Account, nil, nil)

		req := testutil.AuthenticatedRequest(t, "POST",
			"/api/v1/groups/"+group.ID.String()+"/sync/queue", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown group returns 404", func(t *testing.T) {
		queue := &stubEnqueuer{}
		router, tc := setupSyncTestRouter(t, queue)
		defer tc.Cleanup()

		req := testutil.AuthenticatedRequest(t, "POST",
			"/api/v1/groups/00000000-0000-0000-0000-000000000001/sync/queue", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
