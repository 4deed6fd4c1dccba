package syncer

import (
	"strings"

	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/platform"
)

// DefaultProtectedNames are the platform's built-in addons. They join the
// protected set when the account runs in safe mode so a bad group config can
// never strip a user of the platform's own metadata or local-file support.
var DefaultProtectedNames = []string{
	"Cinemeta",
	"Local Files (without catalog support)",
}

// DesiredAddon is one entry of a user's desired collection. Exactly one of
// Addon (group-managed) or Remote (protected entry carried over from the
// user's current collection) is set.
type DesiredAddon struct {
	Addon  *models.Addon
	Remote *platform.AddonEntry
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ProtectedNameSet resolves the normalized set of addon names that must
// never be removed for this user.
func ProtectedNameSet(user *models.User, safeMode bool) map[string]bool {
	set := make(map[string]bool, len(user.ProtectedAddons)+len(DefaultProtectedNames))
	for _, name := range user.ProtectedAddons {
		if n := normalizeName(name); n != "" {
			set[n] = true
		}
	}
	if safeMode {
		for _, name := range DefaultProtectedNames {
			set[normalizeName(name)] = true
		}
	}
	return set
}

func entryName(e platform.AddonEntry) string {
	if e.Manifest != nil && e.Manifest.Name != "" {
		return e.Manifest.Name
	}
	return e.TransportName
}

// ResolveDesired computes the user's effective addon list.
//
// Group addons keep group order (position-sorted input, disabled entries
// dropped). A user-level exclusion removes an addon unless its name is
// protected and it is already present in the current remote collection:
// protection is a safety floor over remote state, not just desired state.
// Protected remote entries that no group addon covers are appended after the
// group addons in their prior relative order.
func ResolveDesired(groupAddons []models.GroupAddon, user *models.User, current []platform.AddonEntry, safeMode bool) []DesiredAddon {
	protected := ProtectedNameSet(user, safeMode)

	currentNames := make(map[string]bool, len(current))
	for _, e := range current {
		currentNames[normalizeName(entryName(e))] = true
	}

	var desired []DesiredAddon
	desiredNames := make(map[string]bool)

	for _, ga := range groupAddons {
		if !ga.IsEnabled || ga.Addon == nil {
			continue
		}
		addon := ga.Addon
		name := normalizeName(addon.Name)

		if user.ExcludedAddons.Contains(addon.ID) {
			// Exclusion wins unless the addon is protected and the
			// user already has it installed.
			if !protected[name] || !currentNames[name] {
				continue
			}
		}

		desired = append(desired, DesiredAddon{Addon: addon})
		desiredNames[name] = true
	}

	for i := range current {
		entry := current[i]
		name := normalizeName(entryName(entry))
		if !protected[name] || desiredNames[name] {
			continue
		}
		desired = append(desired, DesiredAddon{Remote: &entry})
		desiredNames[name] = true
	}

	return desired
}
