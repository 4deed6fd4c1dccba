package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/api/dto"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"gorm.io/gorm"
)

type GroupHandler struct {
	db *gorm.DB
}

func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{db: db}
}

type createGroupRequest struct {
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
}

type updateGroupRequest struct {
	Name      *string      `json:"name,omitempty"`
	IsPrimary *bool        `json:"is_primary,omitempty"`
	Members   *[]uuid.UUID `json:"members,omitempty"`
}

type groupAddonEntry struct {
	AddonID   uuid.UUID `json:"addon_id"`
	IsEnabled bool      `json:"is_enabled"`
}

type setGroupAddonsRequest struct {
	// Addons in the desired order; positions are assigned from the index.
	Addons []groupAddonEntry `json:"addons"`
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var groups []models.Group
	err := h.db.WithContext(r.Context()).
		Preload("Addons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list groups"})
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "name is required"})
		return
	}

	group := models.Group{
		AccountID: accountID,
		Name:      req.Name,
		IsPrimary: req.IsPrimary,
	}

	// The first group of an account is primary by default.
	var count int64
	h.db.WithContext(r.Context()).Model(&models.Group{}).Where("account_id = ?", accountID).Count(&count)
	if count == 0 {
		group.IsPrimary = true
	}

	if err := h.db.WithContext(r.Context()).Create(&group).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create group"})
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.IsPrimary != nil {
		group.IsPrimary = *req.IsPrimary
	}
	if req.Members != nil {
		group.Members = models.UUIDArray(*req.Members)
	}

	if err := h.db.WithContext(r.Context()).Save(group).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update group"})
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// SetAddons replaces the group's addon list. Order in the request defines
// the canonical positions.
func (h *GroupHandler) SetAddons(w http.ResponseWriter, r *http.Request) {
	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	var req setGroupAddonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	accountID := middleware.GetAccountID(r.Context())

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupAddon{}).Error; err != nil {
			return err
		}
		for i, entry := range req.Addons {
			var addon models.Addon
			if err := tx.Where("id = ? AND account_id = ?", entry.AddonID, accountID).First(&addon).Error; err != nil {
				return err
			}
			ga := models.GroupAddon{
				GroupID:   group.ID,
				AddonID:   entry.AddonID,
				Position:  i,
				IsEnabled: entry.IsEnabled,
			}
			if err := tx.Create(&ga).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to set group addons"})
		return
	}

	reloaded, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reloaded)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupAddon{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete group"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Group deleted"})
}

func (h *GroupHandler) loadGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	accountID := middleware.GetAccountID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group id"})
		return nil, false
	}

	var group models.Group
	err = h.db.WithContext(r.Context()).
		Preload("Addons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Addons.Addon").
		Where("id = ? AND account_id = ?", groupID, accountID).
		First(&group).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
		return nil, false
	}
	return &group, true
}
