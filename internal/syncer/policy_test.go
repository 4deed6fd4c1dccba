package syncer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupAddon(name string, enabled bool) models.GroupAddon {
	addon := &models.Addon{
		Base: models.Base{ID: uuid.New()},
		Name: name,
	}
	return models.GroupAddon{
		AddonID:   addon.ID,
		IsEnabled: enabled,
		Addon:     addon,
	}
}

func remoteEntry(name string) platform.AddonEntry {
	return platform.AddonEntry{
		TransportURL: "https://" + name + ".example.com/manifest.json",
		Manifest:     &manifest.Manifest{ID: name, Name: name},
	}
}

func TestProtectedNameSet(t *testing.T) {
	t.Run("safe mode includes the platform built-ins", func(t *testing.T) {
		user := &models.User{}
		set := syncer.ProtectedNameSet(user, true)
		assert.True(t, set["cinemeta"])
		assert.True(t, set["local files (without catalog support)"])
	})

	t.Run("unsafe mode drops the built-ins", func(t *testing.T) {
		user := &models.User{}
		set := syncer.ProtectedNameSet(user, false)
		assert.Empty(t, set)
	})

	t.Run("user protections are normalized", func(t *testing.T) {
		user := &models.User{ProtectedAddons: models.StringArray{"  My Addon  ", ""}}
		set := syncer.ProtectedNameSet(user, false)
		assert.True(t, set["my addon"])
		assert.Len(t, set, 1)
	})
}

func TestResolveDesired(t *testing.T) {
	t.Run("keeps enabled group addons in order", func(t *testing.T) {
		gas := []models.GroupAddon{
			groupAddon("First", true),
			groupAddon("Disabled", false),
			groupAddon("Second", true),
		}
		user := &models.User{}

		desired := syncer.ResolveDesired(gas, user, nil, false)
		require.Len(t, desired, 2)
		assert.Equal(t, "First", desired[0].Addon.Name)
		assert.Equal(t, "Second", desired[1].Addon.Name)
	})

	t.Run("exclusion removes a group addon", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Unwanted", true), groupAddon("Kept", true)}
		user := &models.User{ExcludedAddons: models.UUIDArray{gas[0].AddonID}}

		desired := syncer.ResolveDesired(gas, user, nil, false)
		require.Len(t, desired, 1)
		assert.Equal(t, "Kept", desired[0].Addon.Name)
	})

	t.Run("exclusion cannot remove a protected installed addon", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Cinemeta", true)}
		user := &models.User{ExcludedAddons: models.UUIDArray{gas[0].AddonID}}
		current := []platform.AddonEntry{remoteEntry("Cinemeta")}

		desired := syncer.ResolveDesired(gas, user, current, true)
		require.Len(t, desired, 1)
		require.NotNil(t, desired[0].Addon)
		assert.Equal(t, "Cinemeta", desired[0].Addon.Name)
	})

	t.Run("without safe mode an excluded built-in is removed even when installed", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Cinemeta", true)}
		user := &models.User{ExcludedAddons: models.UUIDArray{gas[0].AddonID}}
		current := []platform.AddonEntry{remoteEntry("Cinemeta")}

		desired := syncer.ResolveDesired(gas, user, current, false)
		assert.Empty(t, desired)
	})

	t.Run("safe mode keeps an installed built-in no group manages", func(t *testing.T) {
		user := &models.User{}
		current := []platform.AddonEntry{remoteEntry("Cinemeta")}

		desired := syncer.ResolveDesired(nil, user, current, true)
		require.Len(t, desired, 1)
		require.NotNil(t, desired[0].Remote)
		assert.Equal(t, "Cinemeta", desired[0].Remote.Manifest.Name)

		desired = syncer.ResolveDesired(nil, user, current, false)
		assert.Empty(t, desired)
	})

	t.Run("exclusion of a protected addon holds when it is not installed", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Cinemeta", true)}
		user := &models.User{ExcludedAddons: models.UUIDArray{gas[0].AddonID}}

		desired := syncer.ResolveDesired(gas, user, nil, true)
		assert.Empty(t, desired)
	})

	t.Run("protected remote entries survive after the group addons", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Managed", true)}
		user := &models.User{ProtectedAddons: models.StringArray{"Keeper"}}
		current := []platform.AddonEntry{
			remoteEntry("Keeper"),
			remoteEntry("Dropped"),
		}

		desired := syncer.ResolveDesired(gas, user, current, false)
		require.Len(t, desired, 2)
		assert.Equal(t, "Managed", desired[0].Addon.Name)
		require.NotNil(t, desired[1].Remote)
		assert.Equal(t, "Keeper", desired[1].Remote.Manifest.Name)
	})

	t.Run("protected remote entries keep their prior relative order", func(t *testing.T) {
		user := &models.User{ProtectedAddons: models.StringArray{"B", "A"}}
		current := []platform.AddonEntry{remoteEntry("A"), remoteEntry("B")}

		desired := syncer.ResolveDesired(nil, user, current, false)
		require.Len(t, desired, 2)
		assert.Equal(t, "A", desired[0].Remote.Manifest.Name)
		assert.Equal(t, "B", desired[1].Remote.Manifest.Name)
	})

	t.Run("a group addon covering a protected name is not duplicated", func(t *testing.T) {
		gas := []models.GroupAddon{groupAddon("Cinemeta", true)}
		user := &models.User{}
		current := []platform.AddonEntry{remoteEntry("Cinemeta")}

		desired := syncer.ResolveDesired(gas, user, current, true)
		require.Len(t, desired, 1)
		assert.NotNil(t, desired[0].Addon)
	})

	t.Run("name matching ignores case and whitespace", func(t *testing.T) {
		user := &models.User{ProtectedAddons: models.StringArray{"  CINEMETA "}}
		current := []platform.AddonEntry{remoteEntry("Cinemeta")}

		desired := syncer.ResolveDesired(nil, user, current, false)
		require.Len(t, desired, 1)
	})
}
