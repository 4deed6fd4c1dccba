package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/pkg/crypto"
	"gorm.io/gorm"
)

// CollectionAPI is the slice of the platform client the engine needs.
type CollectionAPI interface {
	GetCollection(ctx context.Context, authKey string) ([]platform.AddonEntry, error)
	SetCollection(ctx context.Context, authKey string, addons []platform.AddonEntry) error
}

// ManifestSource fetches upstream manifests.
type ManifestSource interface {
	Fetch(ctx context.Context, url string) (*manifest.Manifest, error)
}

// Service converges user collections on the remote platform to the groups'
// desired state.
type Service struct {
	db       *gorm.DB
	keyring  *crypto.Keyring
	platform CollectionAPI
	source   ManifestSource
	logger   *slog.Logger

	manifestTimeout time.Duration
}

// NewService creates a sync service
func NewService(db *gorm.DB, keyring *crypto.Keyring, api CollectionAPI, source ManifestSource, logger *slog.Logger) *Service {
	return &Service{
		db:              db,
		keyring:         keyring,
		platform:        api,
		source:          source,
		logger:          logger,
		manifestTimeout: 10 * time.Second,
	}
}

// SetManifestTimeout overrides the per-fetch manifest timeout.
func (s *Service) SetManifestTimeout(d time.Duration) {
	if d > 0 {
		s.manifestTimeout = d
	}
}

// openCipher loads the account's field cipher through the keyring.
func (s *Service) openCipher(account *models.Account) (*crypto.AccountCipher, error) {
	cipher, err := s.keyring.Open(account.ID, account.WrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("opening account key: %w", err)
	}
	return cipher, nil
}

// selectionKeys converts stored catalog selections to manifest keys.
func selectionKeys(refs models.CatalogRefArray) []manifest.CatalogKey {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]manifest.CatalogKey, len(refs))
	for i, r := range refs {
		keys[i] = manifest.CatalogKey{Type: r.Type, ID: r.ID}
	}
	return keys
}

// decryptFiltered decrypts and parses the addon's stored filtered manifest.
func decryptFiltered(cipher *crypto.AccountCipher, addon *models.Addon) (*manifest.Manifest, error) {
	if len(addon.ManifestFiltered) == 0 {
		return nil, fmt.Errorf("addon %s has no stored manifest", addon.ID)
	}
	data, err := cipher.Decrypt(addon.ManifestFiltered)
	if err != nil {
		return nil, fmt.Errorf("decrypting manifest: %w", err)
	}
	return manifest.Parse(data)
}

// decryptOriginal decrypts and parses the addon's stored original manifest.
func decryptOriginal(cipher *crypto.AccountCipher, addon *models.Addon) (*manifest.Manifest, error) {
	if len(addon.ManifestOriginal) == 0 {
		return nil, fmt.Errorf("addon %s has no stored manifest", addon.ID)
	}
	data, err := cipher.Decrypt(addon.ManifestOriginal)
	if err != nil {
		return nil, fmt.Errorf("decrypting manifest: %w", err)
	}
	return manifest.Parse(data)
}
