package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/api/dto"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/internal/tasks"
	"gorm.io/gorm"
)

// Enqueuer is the slice of asynq.Client the sync handler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type SyncHandler struct {
	db          *gorm.DB
	syncService *syncer.Service
	dispatcher  *notify.Dispatcher
	queue       Enqueuer
}

func NewSyncHandler(db *gorm.DB, syncService *syncer.Service, dispatcher *notify.Dispatcher, queue Enqueuer) *SyncHandler {
	return &SyncHandler{
		db:          db,
		syncService: syncService,
		dispatcher:  dispatcher,
		queue:       queue,
	}
}

type syncGroupRequest struct {
	Mode string `json:"mode,omitempty"`
}

// SyncGroup runs a group sync inline and returns the aggregate. The webhook
// notification is dispatched in the background and never delays or fails
// the response.
func (h *SyncHandler) SyncGroup(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group id"})
		return
	}

	var group models.Group
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND account_id = ?", groupID, accountID).
		First(&group).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
		return
	}

	var req syncGroupRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	mode := syncer.ModeNormal
	if req.Mode == string(syncer.ModeAdvanced) {
		mode = syncer.ModeAdvanced
	}

	summary, err := h.syncService.SyncGroup(r.Context(), groupID, mode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Sync failed: " + err.Error()})
		return
	}

	var account models.Account
	if err := h.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error; err == nil && account.WebhookURL != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			h.dispatcher.Notify(ctx, account.WebhookURL, notify.Report{
				GroupsCount:  1,
				UsersCount:   summary.SyncedUsers,
				FailedUsers:  summary.FailedUsers,
				DiffsByAddon: summary.DiffsByAddon,
				SourceLabel:  "manual",
			})
		}()
	}

	writeJSON(w, http.StatusOK, summary)
}

// QueueSync enqueues a background group sync instead of running it inline.
func (h *SyncHandler) QueueSync(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group id"})
		return
	}

	var group models.Group
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND account_id = ?", groupID, accountID).
		First(&group).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
		return
	}

	var req syncGroupRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := tasks.NewGroupSyncTask(tasks.GroupSyncPayload{
		GroupID:   groupID,
		AccountID: accountID,
		Mode:      req.Mode,
		Source:    "manual",
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to build task"})
		return
	}

	if _, err := h.queue.EnqueueContext(r.Context(), task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Sync already queued for this group"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue sync"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "Sync queued"})
}
