package syncer

import (
	"context"
	"fmt"

	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/pkg/crypto"
)

// Failure reasons surfaced in aggregates.
const (
	ReasonCredential = "credential"
	ReasonAuth       = "auth"
	ReasonWrite      = "write"
)

// UserResult is the outcome of reconciling one user.
type UserResult struct {
	Changed      bool   `json:"changed"`
	FailedReason string `json:"failed_reason,omitempty"`
}

// ReconcileInput carries everything one user's reconciliation needs. The
// caller resolves group membership and decrypts the auth key; the engine
// never touches another user's state.
type ReconcileInput struct {
	User    *models.User
	AuthKey string
	// GroupAddons is the position-sorted group addon list with Addon rows
	// preloaded.
	GroupAddons []models.GroupAddon
	SafeMode    bool
	Cipher      *crypto.AccountCipher
}

// Reconcile converges one user's remote collection. It reads the current
// collection, resolves the desired list, and issues at most one
// whole-collection write. An unchanged collection issues no write at all.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (UserResult, error) {
	current, err := s.platform.GetCollection(ctx, in.AuthKey)
	if err != nil {
		s.logger.Warn("failed to read collection",
			"user_id", in.User.ID,
			"phase", "read",
			"error", err,
		)
		return UserResult{FailedReason: ReasonAuth}, fmt.Errorf("reading collection: %w", err)
	}

	desired := ResolveDesired(in.GroupAddons, in.User, current, in.SafeMode)
	target := s.buildTarget(desired, in.Cipher, in.User.ID)

	if collectionsEqual(current, target) {
		return UserResult{Changed: false}, nil
	}

	if err := s.platform.SetCollection(ctx, in.AuthKey, target); err != nil {
		s.logger.Warn("failed to write collection",
			"user_id", in.User.ID,
			"phase", "write",
			"error", err,
		)
		return UserResult{FailedReason: ReasonWrite}, fmt.Errorf("writing collection: %w", err)
	}

	return UserResult{Changed: true}, nil
}

// buildTarget materializes the desired list into platform entries. An addon
// whose stored manifest cannot be decrypted or parsed is skipped for this
// pass; that is addon-scoped and never fails the user.
func (s *Service) buildTarget(desired []DesiredAddon, cipher *crypto.AccountCipher, userID interface{}) []platform.AddonEntry {
	target := make([]platform.AddonEntry, 0, len(desired))
	for _, d := range desired {
		if d.Remote != nil {
			target = append(target, *d.Remote)
			continue
		}

		addon := d.Addon
		url, err := cipher.DecryptString(addon.EncryptedManifestURL)
		if err != nil {
			s.logger.Error("skipping addon",
				"user_id", userID,
				"addon_id", addon.ID,
				"phase", "build",
				"error", err,
			)
			continue
		}
		m, err := decryptFiltered(cipher, addon)
		if err != nil {
			s.logger.Error("skipping addon",
				"user_id", userID,
				"addon_id", addon.ID,
				"phase", "build",
				"error", err,
			)
			continue
		}

		target = append(target, platform.AddonEntry{
			TransportURL:  url,
			TransportName: addon.Name,
			Manifest:      m,
		})
	}
	return target
}

// collectionsEqual compares membership, manifest content and order. Equal
// collections are the idempotence guarantee: no write call is made.
func collectionsEqual(current, target []platform.AddonEntry) bool {
	if len(current) != len(target) {
		return false
	}
	for i := range current {
		if entryFingerprint(current[i]) != entryFingerprint(target[i]) {
			return false
		}
	}
	return true
}

func entryFingerprint(e platform.AddonEntry) string {
	hash := ""
	if e.Manifest != nil {
		if h, err := manifest.Hash(e.Manifest); err == nil {
			hash = h
		}
	}
	return platform.CanonicalURL(e.TransportURL) + "|" + hash
}
