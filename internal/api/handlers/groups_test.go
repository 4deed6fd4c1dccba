package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/api/handlers"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGroupTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewGroupHandler(tc.DB)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Route("/api/v1/groups", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/{id}", handler.Get)
			r.Put("/{id}", handler.Update)
			r.Put("/{id}/addons", handler.SetAddons)
			r.Delete("/{id}", handler.Delete)
		})
	})

	return r, tc
}

func TestGroupHandler_Create(t *testing.T) {
	router, tc := setupGroupTestRouter(t)
	defer tc.Cleanup()

	t.Run("first group becomes primary", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/groups/",
			map[string]interface{}{"name": "Household"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var group models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
		assert.Equal(t, "Household", group.Name)
		assert.True(t, group.IsPrimary)
	})

	t.Run("later groups are not primary by default", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/groups/",
			map[string]interface{}{"name": "Friends"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var group models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
		assert.False(t, group.IsPrimary)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/groups/",
			map[string]interface{}{}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/groups/",
			map[string]interface{}{"name": "Nope"})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestGroupHandler_Update(t *testing.T) {
	router, tc := setupGroupTestRouter(t)
	defer tc.Cleanup()

	user := testutil.CreateTestUser(t, tc.DB, tc.Keyring, tc.Account, "auth-key")
	group := testutil.CreateTestGroup(t, tc.DB, tc.Account, nil, nil)

	t.Run("updates the member list", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/groups/"+group.ID.String(),
			map[string]interface{}{"members": []string{user.ID.String()}}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var updated models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.Len(t, updated.Members, 1)
		assert.Equal(t, user.ID, updated.Members[0])
	})

	t.Run("unknown group returns 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/groups/"+uuid.NewString(),
			map[string]interface{}{"name": "x"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGroupHandler_SetAddons(t *testing.T) {
	router, tc := setupGroupTestRouter(t)
	defer tc.Cleanup()

	group := testutil.CreateTestGroup(t, tc.DB, tc.Account, nil, nil)
	first := testutil.CreateTestAddon(t, tc.DB, tc.Keyring, tc.Account, "First",
		"https://first.example.com/manifest.json", nil)
	second := testutil.CreateTestAddon(t, tc.DB, tc.Keyring, tc.Account, "Second",
		"https://second.example.com/manifest.json", nil)

	t.Run("request order defines positions", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/groups/"+group.ID.String()+"/addons",
			map[string]interface{}{"addons": []map[string]interface{}{
				{"addon_id": second.ID.String(), "is_enabled": true},
				{"addon_id": first.ID.String(), "is_enabled": false},
			}}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var updated models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.Len(t, updated.Addons, 2)
		assert.Equal(t, second.ID, updated.Addons[0].AddonID)
		assert.Equal(t, 0, updated.Addons[0].Position)
		assert.True(t, updated.Addons[0].IsEnabled)
		assert.Equal(t, first.ID, updated.Addons[1].AddonID)
		assert.Equal(t, 1, updated.Addons[1].Position)
		assert.False(t, updated.Addons[1].IsEnabled)
	})

	t.Run("resetting the list reorders without position conflicts", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/groups/"+group.ID.String()+"/addons",
			map[string]interface{}{"addons": []map[string]interface{}{
				{"addon_id": first.ID.String(), "is_enabled": true},
				{"addon_id": second.ID.String(), "is_enabled": true},
			}}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var updated models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.Len(t, updated.Addons, 2)
		assert.Equal(t, first.ID, updated.Addons[0].AddonID)
		assert.Equal(t, second.ID, updated.Addons[1].AddonID)

		// Replaced rows must be gone from the table, not just flagged.
		var count int64
		require.NoError(t, tc.DB.Unscoped().Model(&models.GroupAddon{}).
			Where("group_id = ?", group.ID).Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})

	t.Run("rejects addons the account does not own", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/groups/"+group.ID.String()+"/addons",
			map[string]interface{}{"addons": []map[string]interface{}{
				{"addon_id": uuid.NewString(), "is_enabled": true},
			}}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGroupHandler_Delete(t *testing.T) {
	router, tc := setupGroupTestRouter(t)
	defer tc.Cleanup()

	addon := testutil.CreateTestAddon(t, tc.DB, tc.Keyring, tc.Account, "Example",
		"https://a.example.com/manifest.json", nil)
	group := testutil.CreateTestGroup(t, tc.DB, tc.Account, nil, []uuid.UUID{addon.ID})

	req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/groups/"+group.ID.String(), nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var count int64
	require.NoError(t, tc.DB.Model(&models.GroupAddon{}).Where("group_id = ?", group.ID).Count(&count).Error)
	assert.Zero(t, count)
}
