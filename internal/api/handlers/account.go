package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hugh/addon-herd/internal/api/dto"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/pkg/util"
	"gorm.io/gorm"
)

type AccountHandler struct {
	db *gorm.DB
}

func NewAccountHandler(db *gorm.DB) *AccountHandler {
	return &AccountHandler{db: db}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var account models.Account
	if err := h.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Account not found"})
		return
	}

	writeJSON(w, http.StatusOK, account)
}

type updateSettingsRequest struct {
	Name             *string `json:"name,omitempty"`
	SyncEnabled      *bool   `json:"sync_enabled,omitempty"`
	SyncCronExpr     *string `json:"sync_cron_expr,omitempty"`
	SafeMode         *bool   `json:"safe_mode,omitempty"`
	SyncCustomFields *bool   `json:"sync_custom_fields,omitempty"`
	WebhookURL       *string `json:"webhook_url,omitempty"`
}

// UpdateSettings applies partial changes to the account's sync configuration.
// Touching the schedule or enabling sync recomputes next_sync_at from the
// cron expression so the scheduler picks the account up at the right time.
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var account models.Account
	if err := h.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Account not found"})
		return
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.SyncEnabled != nil {
		account.SyncEnabled = *req.SyncEnabled
	}
	if req.SyncCronExpr != nil {
		if err := util.ValidateCronExpr(*req.SyncCronExpr); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression: " + err.Error()})
			return
		}
		account.SyncCronExpr = *req.SyncCronExpr
	}
	if req.SafeMode != nil {
		account.SafeMode = *req.SafeMode
	}
	if req.SyncCustomFields != nil {
		account.SyncCustomFields = *req.SyncCustomFields
	}
	if req.WebhookURL != nil {
		account.WebhookURL = *req.WebhookURL
	}

	if account.SyncEnabled && (req.SyncCronExpr != nil || req.SyncEnabled != nil) {
		next, err := util.NextCronTime(account.SyncCronExpr, time.Now())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression: " + err.Error()})
			return
		}
		account.NextSyncAt = next.Unix()
	}

	if err := h.db.WithContext(r.Context()).Save(&account).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update account"})
		return
	}

	writeJSON(w, http.StatusOK, account)
}
