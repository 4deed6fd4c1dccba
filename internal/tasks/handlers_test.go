package tasks_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/internal/tasks"
	"github.com/hugh/addon-herd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type stubPlatform struct{}

func (stubPlatform) GetCollection(ctx context.Context, authKey string) ([]platform.AddonEntry, error) {
	return nil, nil
}

func (stubPlatform) SetCollection(ctx context.Context, authKey string, addons []platform.AddonEntry) error {
	return nil
}

type stubSource struct{}

func (stubSource) Fetch(ctx context.Context, url string) (*manifest.Manifest, error) {
	return &manifest.Manifest{ID: "org.a", Name: "Example"}, nil
}

func TestNewGroupSyncTask(t *testing.T) {
	groupID := uuid.New()
	task, err := tasks.NewGroupSyncTask(tasks.GroupSyncPayload{
		GroupID:   groupID,
		AccountID: uuid.New(),
		Mode:      "advanced",
		Source:    "scheduled",
	})
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeGroupSync, task.Type())

	var payload tasks.GroupSyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, groupID, payload.GroupID)
	assert.Equal(t, "advanced", payload.Mode)
}

func TestHandler_HandleGroupSync(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	keyring := testutil.CreateTestKeyring(t)
	account := testutil.CreateTestAccount(t, db, keyring)
	user := testutil.CreateTestUser(t, db, keyring, account, "auth-key")
	group := testutil.CreateTestGroup(t, db, account, []uuid.UUID{user.ID}, nil)

	svc := syncer.NewService(db, keyring, stubPlatform{}, stubSource{}, quietLogger())
	handler := tasks.NewHandler(db, quietLogger(), svc, notify.NewDispatcher(quietLogger()), nil)

	t.Run("runs the sync for the payload group", func(t *testing.T) {
		task, err := tasks.NewGroupSyncTask(tasks.GroupSyncPayload{
			GroupID:   group.ID,
			AccountID: account.ID,
			Mode:      "normal",
		})
		require.NoError(t, err)

		err = handler.HandleGroupSync(context.Background(), task)
		assert.NoError(t, err)
	})

	t.Run("fails on an unknown group", func(t *testing.T) {
		task, err := tasks.NewGroupSyncTask(tasks.GroupSyncPayload{
			GroupID:   uuid.New(),
			AccountID: account.ID,
		})
		require.NoError(t, err)

		err = handler.HandleGroupSync(context.Background(), task)
		assert.Error(t, err)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		task := asynq.NewTask(tasks.TypeGroupSync, []byte("not json"))
		err := handler.HandleGroupSync(context.Background(), task)
		assert.Error(t, err)
	})
}

func TestHandler_HandleSchedulerTick(t *testing.T) {
	t.Run("ignores accounts that are not due", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		keyring := testutil.CreateTestKeyring(t)
		account := testutil.CreateTestAccount(t, db, keyring)

		// Enabled but scheduled in the future.
		require.NoError(t, db.Model(account).Updates(map[string]interface{}{
			"sync_enabled": true,
			"next_sync_at": time.Now().Add(time.Hour).Unix(),
		}).Error)

		svc := syncer.NewService(db, keyring, stubPlatform{}, stubSource{}, quietLogger())
		handler := tasks.NewHandler(db, quietLogger(), svc, notify.NewDispatcher(quietLogger()), nil)

		require.NoError(t, handler.HandleSchedulerTick(context.Background(), tasks.NewSchedulerTickTask()))

		var reloaded models.Account
		require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
		assert.Nil(t, reloaded.LastSyncAt)
	})

	t.Run("advances the schedule for a due account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		keyring := testutil.CreateTestKeyring(t)
		account := testutil.CreateTestAccount(t, db, keyring)

		// Due in the past, no groups so nothing is enqueued.
		require.NoError(t, db.Model(account).Updates(map[string]interface{}{
			"sync_enabled": true,
			"next_sync_at": time.Now().Add(-time.Minute).Unix(),
		}).Error)

		svc := syncer.NewService(db, keyring, stubPlatform{}, stubSource{}, quietLogger())
		handler := tasks.NewHandler(db, quietLogger(), svc, notify.NewDispatcher(quietLogger()), nil)

		require.NoError(t, handler.HandleSchedulerTick(context.Background(), tasks.NewSchedulerTickTask()))

		var reloaded models.Account
		require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
		require.NotNil(t, reloaded.LastSyncAt)
		assert.Greater(t, reloaded.NextSyncAt, time.Now().Unix())
	})
}
