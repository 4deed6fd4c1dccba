package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/api/dto"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/syncer"
	"gorm.io/gorm"
)

type AddonHandler struct {
	db          *gorm.DB
	syncService *syncer.Service
}

func NewAddonHandler(db *gorm.DB, syncService *syncer.Service) *AddonHandler {
	return &AddonHandler{db: db, syncService: syncService}
}

type createAddonRequest struct {
	ManifestURL string                 `json:"manifest_url"`
	Resources   []string               `json:"resources,omitempty"`
	Catalogs    models.CatalogRefArray `json:"catalogs,omitempty"`
}

func (h *AddonHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var addons []models.Addon
	err := h.db.WithContext(r.Context()).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&addons).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list addons"})
		return
	}

	writeJSON(w, http.StatusOK, addons)
}

// Create installs an addon: the manifest is fetched, filtered by the given
// selections and stored encrypted.
func (h *AddonHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req createAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ManifestURL == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "manifest_url is required"})
		return
	}

	addon, err := h.syncService.InstallAddon(r.Context(), accountID, req.ManifestURL, req.Resources, req.Catalogs)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Failed to install addon: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, addon)
}

type updateAddonRequest struct {
	Resources []string               `json:"resources"`
	Catalogs  models.CatalogRefArray `json:"catalogs"`
}

// Update re-filters the addon from its stored original manifest with new
// selections. Sending empty lists restores the unfiltered manifest.
func (h *AddonHandler) Update(w http.ResponseWriter, r *http.Request) {
	addon, ok := h.loadAddon(w, r)
	if !ok {
		return
	}

	var req updateAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	updated, err := h.syncService.UpdateSelections(r.Context(), addon.ID, req.Resources, req.Catalogs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update addon: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *AddonHandler) Get(w http.ResponseWriter, r *http.Request) {
	addon, ok := h.loadAddon(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, addon)
}

// Reload refreshes the addon from its upstream manifest URL and returns the
// manifest-level diff.
func (h *AddonHandler) Reload(w http.ResponseWriter, r *http.Request) {
	addon, ok := h.loadAddon(w, r)
	if !ok {
		return
	}

	res, err := h.syncService.ReloadAddon(r.Context(), addon.ID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Failed to reload addon: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *AddonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	addon, ok := h.loadAddon(w, r)
	if !ok {
		return
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("addon_id = ?", addon.ID).Delete(&models.GroupAddon{}).Error; err != nil {
			return err
		}
		return tx.Delete(addon).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete addon"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Addon deleted"})
}

func (h *AddonHandler) loadAddon(w http.ResponseWriter, r *http.Request) (*models.Addon, bool) {
	accountID := middleware.GetAccountID(r.Context())

	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid addon id"})
		return nil, false
	}

	var addon models.Addon
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND account_id = ?", addonID, accountID).
		First(&addon).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Addon not found"})
		return nil, false
	}
	return &addon, true
}
