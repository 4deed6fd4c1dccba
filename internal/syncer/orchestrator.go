package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/pkg/crypto"
	"gorm.io/gorm"
)

// Mode selects how much work a group sync does.
type Mode string

const (
	// ModeNormal reconciles users against the stored filtered manifests.
	ModeNormal Mode = "normal"
	// ModeAdvanced refreshes every group addon from upstream first.
	ModeAdvanced Mode = "advanced"
)

// UserFailure records one user that could not be reconciled.
type UserFailure struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

// GroupSummary is the aggregate outcome of one group sync. It is always
// complete: a user or addon error never aborts the batch.
type GroupSummary struct {
	GroupID      uuid.UUID                `json:"group_id"`
	GroupName    string                   `json:"group_name"`
	SyncedUsers  int                      `json:"synced_users"`
	FailedUsers  int                      `json:"failed_users"`
	ChangedUsers int                      `json:"changed_users"`
	Failures     []UserFailure            `json:"failures,omitempty"`
	DiffsByAddon map[string]manifest.Diff `json:"diffs_by_addon,omitempty"`
}

// SyncGroup reconciles every member of a group sequentially. In advanced
// mode each group addon is refreshed from its upstream manifest first and
// manifest-level diffs are recorded once per addon, not per user.
func (s *Service) SyncGroup(ctx context.Context, groupID uuid.UUID, mode Mode) (*GroupSummary, error) {
	var group models.Group
	err := s.db.WithContext(ctx).
		Preload("Addons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Addons.Addon").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		return nil, fmt.Errorf("loading group: %w", err)
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", group.AccountID).Error; err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	cipher, err := s.openCipher(&account)
	if err != nil {
		return nil, err
	}

	summary := &GroupSummary{
		GroupID:      group.ID,
		GroupName:    group.Name,
		DiffsByAddon: make(map[string]manifest.Diff),
	}

	if mode == ModeAdvanced {
		seen := make(map[uuid.UUID]bool)
		for i := range group.Addons {
			addon := group.Addons[i].Addon
			if addon == nil || seen[addon.ID] {
				continue
			}
			seen[addon.ID] = true

			diff, err := s.refreshAddon(ctx, cipher, addon)
			if err != nil {
				s.logger.Error("failed to refresh addon",
					"addon_id", addon.ID,
					"phase", "refresh",
					"error", err,
				)
				continue
			}
			if !diff.Empty() {
				summary.DiffsByAddon[addon.Name] = diff
			}
		}
	}

	primaryMembers, err := s.primaryMemberSet(ctx, &group, &account)
	if err != nil {
		return nil, err
	}

	for _, userID := range group.Members {
		if primaryMembers[userID] {
			// Another group is authoritative for this user.
			continue
		}

		var user models.User
		if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
			s.logger.Warn("skipping unknown group member", "user_id", userID, "group_id", group.ID)
			continue
		}
		if !user.IsActive {
			continue
		}

		authKey, err := cipher.DecryptString(user.EncryptedAuthKey)
		if err != nil || authKey == "" {
			s.logger.Warn("failed to decrypt auth key",
				"user_id", user.ID,
				"phase", "credential",
				"error", err,
			)
			summary.FailedUsers++
			summary.Failures = append(summary.Failures, UserFailure{UserID: user.ID, Reason: ReasonCredential})
			continue
		}

		res, err := s.Reconcile(ctx, ReconcileInput{
			User:        &user,
			AuthKey:     authKey,
			GroupAddons: group.Addons,
			SafeMode:    account.SafeMode,
			Cipher:      cipher,
		})
		if err != nil {
			summary.FailedUsers++
			summary.Failures = append(summary.Failures, UserFailure{UserID: user.ID, Reason: res.FailedReason})
			continue
		}

		summary.SyncedUsers++
		if res.Changed {
			summary.ChangedUsers++
		}
	}

	s.logger.Info("group sync finished",
		"group_id", group.ID,
		"mode", string(mode),
		"synced", summary.SyncedUsers,
		"failed", summary.FailedUsers,
		"changed", summary.ChangedUsers,
	)

	return summary, nil
}

// primaryMemberSet returns the members of this group that belong to a
// primary group, when this group itself is not primary. Those users are
// skipped here: the primary group's addon list is authoritative for them.
func (s *Service) primaryMemberSet(ctx context.Context, group *models.Group, account *models.Account) (map[uuid.UUID]bool, error) {
	set := make(map[uuid.UUID]bool)
	if group.IsPrimary {
		return set, nil
	}

	var primaries []models.Group
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND is_primary = ? AND id <> ?", account.ID, true, group.ID).
		Find(&primaries).Error
	if err != nil {
		return nil, fmt.Errorf("loading primary groups: %w", err)
	}

	for _, p := range primaries {
		for _, id := range p.Members {
			if group.Members.Contains(id) {
				set[id] = true
			}
		}
	}
	return set, nil
}

// refreshAddon re-fetches the addon's upstream manifest, re-applies the
// stored selections and re-hashes. A failed or timed-out fetch degrades to
// the stored manifest when one exists; only an addon with no stored fallback
// errors out and is skipped for the pass. The addon struct is updated in
// place so callers reconcile against the fresh state.
func (s *Service) refreshAddon(ctx context.Context, cipher *crypto.AccountCipher, addon *models.Addon) (manifest.Diff, error) {
	url, err := cipher.DecryptString(addon.EncryptedManifestURL)
	if err != nil {
		return manifest.Diff{}, fmt.Errorf("decrypting manifest URL: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.manifestTimeout)
	defer cancel()

	fetched, err := s.source.Fetch(fetchCtx, url)
	if err != nil {
		if len(addon.ManifestOriginal) > 0 {
			s.logger.Warn("manifest fetch failed, keeping stored manifest",
				"addon_id", addon.ID,
				"phase", "fetch",
				"error", err,
			)
			return manifest.Diff{}, nil
		}
		return manifest.Diff{}, fmt.Errorf("fetching manifest: %w", err)
	}

	var oldFiltered *manifest.Manifest
	if len(addon.ManifestFiltered) > 0 {
		if data, err := cipher.Decrypt(addon.ManifestFiltered); err == nil {
			oldFiltered, _ = manifest.Parse(data)
		}
	}

	newFiltered := manifest.Filter(fetched, addon.Resources, selectionKeys(addon.Catalogs))
	newHash, err := manifest.Hash(newFiltered)
	if err != nil {
		return manifest.Diff{}, err
	}

	originalData, err := manifest.Encode(fetched)
	if err != nil {
		return manifest.Diff{}, err
	}
	filteredData, err := manifest.Encode(newFiltered)
	if err != nil {
		return manifest.Diff{}, err
	}

	encOriginal, err := cipher.Encrypt(originalData)
	if err != nil {
		return manifest.Diff{}, fmt.Errorf("encrypting manifest: %w", err)
	}
	encFiltered, err := cipher.Encrypt(filteredData)
	if err != nil {
		return manifest.Diff{}, fmt.Errorf("encrypting manifest: %w", err)
	}

	addon.Name = fetched.Name
	addon.ManifestOriginal = encOriginal
	addon.ManifestFiltered = encFiltered
	addon.ManifestHash = newHash

	err = s.db.WithContext(ctx).Model(&models.Addon{}).
		Where("id = ?", addon.ID).
		Updates(map[string]interface{}{
			"name":              fetched.Name,
			"manifest_original": encOriginal,
			"manifest_filtered": encFiltered,
			"manifest_hash":     newHash,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return manifest.Diff{}, fmt.Errorf("saving refreshed manifest: %w", err)
	}

	return manifest.Compare(oldFiltered, newFiltered), nil
}
