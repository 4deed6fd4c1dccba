package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/pkg/util"
	"gorm.io/gorm"
)

type Handler struct {
	db          *gorm.DB
	logger      *slog.Logger
	syncService *syncer.Service
	dispatcher  *notify.Dispatcher
	asynqClient *asynq.Client
}

func NewHandler(db *gorm.DB, logger *slog.Logger, syncService *syncer.Service, dispatcher *notify.Dispatcher, asynqClient *asynq.Client) *Handler {
	return &Handler{
		db:          db,
		logger:      logger,
		syncService: syncService,
		dispatcher:  dispatcher,
		asynqClient: asynqClient,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGroupSync, h.HandleGroupSync)
	mux.HandleFunc(TypeAddonReload, h.HandleAddonReload)
	mux.HandleFunc(TypeSchedulerTick, h.HandleSchedulerTick)
}

func (h *Handler) HandleGroupSync(ctx context.Context, t *asynq.Task) error {
	var payload GroupSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	mode := syncer.Mode(payload.Mode)
	if mode != syncer.ModeAdvanced {
		mode = syncer.ModeNormal
	}

	h.logger.Info("starting group sync",
		"group_id", payload.GroupID,
		"account_id", payload.AccountID,
		"mode", string(mode),
	)

	summary, err := h.syncService.SyncGroup(ctx, payload.GroupID, mode)
	if err != nil {
		h.logger.Error("group sync failed", "group_id", payload.GroupID, "error", err)
		return err
	}

	// Notification is best-effort and never fails the task.
	var account models.Account
	if err := h.db.WithContext(ctx).First(&account, "id = ?", payload.AccountID).Error; err == nil {
		h.dispatcher.Notify(ctx, account.WebhookURL, notify.Report{
			GroupsCount:  1,
			UsersCount:   summary.SyncedUsers,
			FailedUsers:  summary.FailedUsers,
			DiffsByAddon: summary.DiffsByAddon,
			SourceLabel:  payload.Source,
		})
	}

	h.logger.Info("completed group sync",
		"group_id", payload.GroupID,
		"synced", summary.SyncedUsers,
		"failed", summary.FailedUsers,
	)

	return nil
}

func (h *Handler) HandleAddonReload(ctx context.Context, t *asynq.Task) error {
	var payload AddonReloadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	res, err := h.syncService.ReloadAddon(ctx, payload.AddonID)
	if err != nil {
		h.logger.Error("addon reload failed", "addon_id", payload.AddonID, "error", err)
		return err
	}

	h.logger.Info("reloaded addon",
		"addon_id", res.AddonID,
		"name", res.AddonName,
		"changed", !res.Diff.Empty(),
	)

	return nil
}

// HandleSchedulerTick enqueues a sync for every group of every account whose
// schedule has elapsed, then advances the account's next run time.
func (h *Handler) HandleSchedulerTick(ctx context.Context, t *asynq.Task) error {
	now := time.Now()

	var accounts []models.Account
	err := h.db.WithContext(ctx).
		Where("sync_enabled = ? AND next_sync_at <= ?", true, now.Unix()).
		Find(&accounts).Error
	if err != nil {
		return fmt.Errorf("loading due accounts: %w", err)
	}

	for i := range accounts {
		account := &accounts[i]

		var groups []models.Group
		if err := h.db.WithContext(ctx).Where("account_id = ?", account.ID).Find(&groups).Error; err != nil {
			h.logger.Error("failed to load groups", "account_id", account.ID, "error", err)
			continue
		}

		for _, group := range groups {
			// Scheduled runs refresh manifests so content changes
			// reach the webhook report.
			task, err := NewGroupSyncTask(GroupSyncPayload{
				GroupID:   group.ID,
				AccountID: account.ID,
				Mode:      string(syncer.ModeAdvanced),
				Source:    "scheduled",
			})
			if err != nil {
				h.logger.Error("failed to build sync task", "group_id", group.ID, "error", err)
				continue
			}
			if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
				// A still-queued task for this group means the
				// previous run has not finished; skip this round.
				if errors.Is(err, asynq.ErrTaskIDConflict) {
					h.logger.Warn("group sync already queued", "group_id", group.ID)
					continue
				}
				h.logger.Error("failed to enqueue sync", "group_id", group.ID, "error", err)
			}
		}

		next, err := util.NextCronTime(account.SyncCronExpr, now)
		if err != nil {
			h.logger.Error("invalid sync schedule",
				"account_id", account.ID,
				"cron", account.SyncCronExpr,
				"error", err,
			)
			continue
		}

		lastRun := now.Unix()
		err = h.db.WithContext(ctx).Model(&models.Account{}).
			Where("id = ?", account.ID).
			Updates(map[string]interface{}{
				"next_sync_at": next.Unix(),
				"last_sync_at": lastRun,
				"updated_at":   now,
			}).Error
		if err != nil {
			h.logger.Error("failed to advance schedule", "account_id", account.ID, "error", err)
		}
	}

	return nil
}
