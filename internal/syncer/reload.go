package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
)

// ReloadResult reports the manifest-level changes a reload produced.
type ReloadResult struct {
	AddonID   uuid.UUID     `json:"addon_id"`
	AddonName string        `json:"addon_name"`
	Diff      manifest.Diff `json:"diff"`
}

// ReloadAddon refreshes a single addon from its upstream manifest URL,
// re-applies the stored selections and persists the re-encrypted manifests.
func (s *Service) ReloadAddon(ctx context.Context, addonID uuid.UUID) (*ReloadResult, error) {
	var addon models.Addon
	if err := s.db.WithContext(ctx).First(&addon, "id = ?", addonID).Error; err != nil {
		return nil, fmt.Errorf("loading addon: %w", err)
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", addon.AccountID).Error; err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	cipher, err := s.openCipher(&account)
	if err != nil {
		return nil, err
	}

	diff, err := s.refreshAddon(ctx, cipher, &addon)
	if err != nil {
		return nil, err
	}

	return &ReloadResult{
		AddonID:   addon.ID,
		AddonName: addon.Name,
		Diff:      diff,
	}, nil
}

// UpdateSelections re-filters the stored original manifest with new resource
// and catalog selections and persists the result. Upstream is not contacted;
// the stored original is the source.
func (s *Service) UpdateSelections(ctx context.Context, addonID uuid.UUID, resources []string, catalogs models.CatalogRefArray) (*models.Addon, error) {
	var addon models.Addon
	if err := s.db.WithContext(ctx).First(&addon, "id = ?", addonID).Error; err != nil {
		return nil, fmt.Errorf("loading addon: %w", err)
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", addon.AccountID).Error; err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	cipher, err := s.openCipher(&account)
	if err != nil {
		return nil, err
	}

	original, err := decryptOriginal(cipher, &addon)
	if err != nil {
		return nil, err
	}

	filtered := manifest.Filter(original, resources, selectionKeys(catalogs))
	hash, err := manifest.Hash(filtered)
	if err != nil {
		return nil, err
	}

	filteredData, err := manifest.Encode(filtered)
	if err != nil {
		return nil, err
	}
	encFiltered, err := cipher.Encrypt(filteredData)
	if err != nil {
		return nil, fmt.Errorf("encrypting manifest: %w", err)
	}

	addon.Resources = models.StringArray(resources)
	addon.Catalogs = catalogs
	addon.ManifestFiltered = encFiltered
	addon.ManifestHash = hash

	if err := s.db.WithContext(ctx).Save(&addon).Error; err != nil {
		return nil, fmt.Errorf("saving addon: %w", err)
	}

	s.logger.Info("updated addon selections",
		"addon_id", addon.ID,
		"account_id", addon.AccountID,
	)

	return &addon, nil
}

// InstallAddon fetches a manifest for the first time, applies the given
// selections and stores the encrypted addon row.
func (s *Service) InstallAddon(ctx context.Context, accountID uuid.UUID, manifestURL string, resources []string, catalogs models.CatalogRefArray) (*models.Addon, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	cipher, err := s.openCipher(&account)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.manifestTimeout)
	defer cancel()

	fetched, err := s.source.Fetch(fetchCtx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}

	filtered := manifest.Filter(fetched, resources, selectionKeys(catalogs))
	hash, err := manifest.Hash(filtered)
	if err != nil {
		return nil, err
	}

	originalData, err := manifest.Encode(fetched)
	if err != nil {
		return nil, err
	}
	filteredData, err := manifest.Encode(filtered)
	if err != nil {
		return nil, err
	}

	encURL, err := cipher.EncryptString(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("encrypting manifest URL: %w", err)
	}
	encOriginal, err := cipher.Encrypt(originalData)
	if err != nil {
		return nil, fmt.Errorf("encrypting manifest: %w", err)
	}
	encFiltered, err := cipher.Encrypt(filteredData)
	if err != nil {
		return nil, fmt.Errorf("encrypting manifest: %w", err)
	}

	addon := &models.Addon{
		AccountID:            accountID,
		Name:                 fetched.Name,
		EncryptedManifestURL: encURL,
		ManifestOriginal:     encOriginal,
		ManifestFiltered:     encFiltered,
		ManifestHash:         hash,
		Resources:            models.StringArray(resources),
		Catalogs:             catalogs,
	}

	if err := s.db.WithContext(ctx).Create(addon).Error; err != nil {
		return nil, fmt.Errorf("saving addon: %w", err)
	}

	s.logger.Info("installed addon",
		"addon_id", addon.ID,
		"account_id", accountID,
		"name", addon.Name,
	)

	return addon, nil
}
