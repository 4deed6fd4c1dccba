package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/auth"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/pkg/crypto"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.Account{},
		&models.User{},
		&models.Addon{},
		&models.Group{},
		&models.GroupAddon{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestKeyring builds a keyring backed by a freshly generated age identity.
func CreateTestKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate age identity: %v", err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return crypto.NewKeyring(enc, time.Minute)
}

// CreateTestAccount creates an account with a real wrapped data-encryption key.
func CreateTestAccount(t *testing.T, db *gorm.DB, keyring *crypto.Keyring) *models.Account {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	wrapped, err := keyring.GenerateDEK()
	if err != nil {
		t.Fatalf("failed to generate account key: %v", err)
	}

	account := &models.Account{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test Account",
		IsActive:     true,
		WrappedDEK:   wrapped,
		SafeMode:     true,
		SyncCronExpr: "0 */6 * * *",
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}

	return account
}

// AccountCipher unwraps the account's key for encrypting test fixtures.
func AccountCipher(t *testing.T, keyring *crypto.Keyring, account *models.Account) *crypto.AccountCipher {
	t.Helper()

	cipher, err := keyring.Open(account.ID, account.WrappedDEK)
	if err != nil {
		t.Fatalf("failed to open account cipher: %v", err)
	}
	return cipher
}

// CreateTestUser creates a synced platform user under the given account. The
// auth key is encrypted with the account's key so the sync path can decrypt it.
func CreateTestUser(t *testing.T, db *gorm.DB, keyring *crypto.Keyring, account *models.Account, authKey string) *models.User {
	t.Helper()

	cipher := AccountCipher(t, keyring, account)
	encKey, err := cipher.EncryptString(authKey)
	if err != nil {
		t.Fatalf("failed to encrypt auth key: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		AccountID:        account.ID,
		Username:         "user-" + uuid.New().String()[:8],
		Email:            "user-" + uuid.New().String()[:8] + "@example.com",
		IsActive:         true,
		EncryptedAuthKey: encKey,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestAddon creates an addon whose manifest URL and manifest bodies are
// encrypted with the account's key.
func CreateTestAddon(t *testing.T, db *gorm.DB, keyring *crypto.Keyring, account *models.Account, name, manifestURL string, filtered []byte) *models.Addon {
	t.Helper()

	cipher := AccountCipher(t, keyring, account)
	encURL, err := cipher.EncryptString(manifestURL)
	if err != nil {
		t.Fatalf("failed to encrypt manifest url: %v", err)
	}

	addon := &models.Addon{
		Base: models.Base{
			ID: uuid.New(),
		},
		AccountID:            account.ID,
		Name:                 name,
		EncryptedManifestURL: encURL,
	}

	if filtered != nil {
		encFiltered, err := cipher.Encrypt(filtered)
		if err != nil {
			t.Fatalf("failed to encrypt manifest: %v", err)
		}
		addon.ManifestOriginal = encFiltered
		addon.ManifestFiltered = encFiltered
	}

	if err := db.Create(addon).Error; err != nil {
		t.Fatalf("failed to create test addon: %v", err)
	}

	return addon
}

// CreateTestGroup creates a group with the given members and addons in order.
func CreateTestGroup(t *testing.T, db *gorm.DB, account *models.Account, memberIDs []uuid.UUID, addonIDs []uuid.UUID) *models.Group {
	t.Helper()

	group := &models.Group{
		Base: models.Base{
			ID: uuid.New(),
		},
		AccountID: account.ID,
		Name:      "group-" + uuid.New().String()[:8],
		IsPrimary: true,
		Members:   models.UUIDArray(memberIDs),
	}

	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}

	for i, addonID := range addonIDs {
		ga := &models.GroupAddon{
			ID:        uuid.New(),
			GroupID:   group.ID,
			AddonID:   addonID,
			Position:  i,
			IsEnabled: true,
		}
		if err := db.Create(ga).Error; err != nil {
			t.Fatalf("failed to create test group addon: %v", err)
		}
	}

	if err := db.Preload("Addons", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).Preload("Addons.Addon").First(group, "id = ?", group.ID).Error; err != nil {
		t.Fatalf("failed to reload test group: %v", err)
	}

	return group
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given account
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, account *models.Account) string {
	t.Helper()

	token, err := jwtService.GenerateToken(account.ID, account.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	Keyring    *crypto.Keyring
	JWTService *auth.JWTService
	Account    *models.Account
	Token      string
}

// NewTestContext creates a complete test setup with DB, keyring, account, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	keyring := CreateTestKeyring(t)
	jwtService := CreateTestJWTService()
	account := CreateTestAccount(t, db, keyring)
	token := GenerateTestToken(t, jwtService, account)

	return &TestSetup{
		DB:         db,
		Keyring:    keyring,
		JWTService: jwtService,
		Account:    account,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
