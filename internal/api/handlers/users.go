package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/api/dto"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/pkg/crypto"
	"gorm.io/gorm"
)

type UserHandler struct {
	db      *gorm.DB
	keyring *crypto.Keyring
}

func NewUserHandler(db *gorm.DB, keyring *crypto.Keyring) *UserHandler {
	return &UserHandler{db: db, keyring: keyring}
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	AuthKey  string `json:"auth_key"`
}

type updateUserRequest struct {
	Username        *string      `json:"username,omitempty"`
	Email           *string      `json:"email,omitempty"`
	IsActive        *bool        `json:"is_active,omitempty"`
	AuthKey         *string      `json:"auth_key,omitempty"`
	ExcludedAddons  *[]uuid.UUID `json:"excluded_addons,omitempty"`
	ProtectedAddons *[]string    `json:"protected_addons,omitempty"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var users []models.User
	err := h.db.WithContext(r.Context()).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list users"})
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Username == "" || req.AuthKey == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "username and auth_key are required"})
		return
	}

	cipher, err := h.accountCipher(r, accountID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to open account key"})
		return
	}

	encKey, err := cipher.EncryptString(req.AuthKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to encrypt auth key"})
		return
	}

	user := models.User{
		AccountID:        accountID,
		Username:         req.Username,
		Email:            req.Email,
		IsActive:         true,
		EncryptedAuthKey: encKey,
	}

	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create user"})
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update mutates profile fields and the per-user exclusion and protection
// lists. A new auth key (re-link) is encrypted before it is stored.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.ExcludedAddons != nil {
		user.ExcludedAddons = models.UUIDArray(*req.ExcludedAddons)
	}
	if req.ProtectedAddons != nil {
		user.ProtectedAddons = models.StringArray(*req.ProtectedAddons)
	}
	if req.AuthKey != nil && *req.AuthKey != "" {
		cipher, err := h.accountCipher(r, user.AccountID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to open account key"})
			return
		}
		encKey, err := cipher.EncryptString(*req.AuthKey)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to encrypt auth key"})
			return
		}
		user.EncryptedAuthKey = encKey
	}

	if err := h.db.WithContext(r.Context()).Save(user).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update user"})
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(user).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete user"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

func (h *UserHandler) loadUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	accountID := middleware.GetAccountID(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user id"})
		return nil, false
	}

	var user models.User
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND account_id = ?", userID, accountID).
		First(&user).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return nil, false
	}
	return &user, true
}

func (h *UserHandler) accountCipher(r *http.Request, accountID uuid.UUID) (*crypto.AccountCipher, error) {
	var account models.Account
	if err := h.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return h.keyring.Open(account.ID, account.WrappedDEK)
}
