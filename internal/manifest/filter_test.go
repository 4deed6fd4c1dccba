package manifest_test

import (
	"testing"

	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchableManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ID:   "org.example",
		Name: "Example",
		Resources: []manifest.ResourceRef{
			{Name: "catalog"},
			{Name: "stream"},
			{Name: "meta"},
		},
		Catalogs: []manifest.Catalog{
			{
				Type: "movie",
				ID:   "top",
				Extra: []manifest.Extra{
					{Name: "search"},
					{Name: "genre", Options: []string{"Action", "Drama"}},
				},
			},
			{
				Type:  "movie",
				ID:    "recent",
				Extra: []manifest.Extra{{Name: "skip"}},
			},
		},
	}
}

func TestSplitSearchCatalogs(t *testing.T) {
	t.Run("splits a catalog with search plus other extras", func(t *testing.T) {
		out := manifest.SplitSearchCatalogs(searchableManifest().Catalogs)
		require.Len(t, out, 3)

		assert.Equal(t, "top", out[0].ID)
		require.Len(t, out[0].Extra, 1)
		assert.Equal(t, "genre", out[0].Extra[0].Name)

		assert.Equal(t, "top"+manifest.EmbedSearchSuffix, out[1].ID)
		require.Len(t, out[1].Extra, 1)
		assert.Equal(t, "search", out[1].Extra[0].Name)

		assert.Equal(t, "recent", out[2].ID)
	})

	t.Run("leaves search-only catalogs alone", func(t *testing.T) {
		catalogs := []manifest.Catalog{
			{Type: "movie", ID: "find", Extra: []manifest.Extra{{Name: "search"}}},
		}
		out := manifest.SplitSearchCatalogs(catalogs)
		require.Len(t, out, 1)
		assert.Equal(t, "find", out[0].ID)
	})

	t.Run("leaves catalogs without search alone", func(t *testing.T) {
		catalogs := []manifest.Catalog{
			{Type: "movie", ID: "top", Extra: []manifest.Extra{{Name: "genre"}}},
		}
		out := manifest.SplitSearchCatalogs(catalogs)
		require.Len(t, out, 1)
		assert.Equal(t, "top", out[0].ID)
	})
}

func TestFilter(t *testing.T) {
	t.Run("empty selections pass everything through", func(t *testing.T) {
		m := searchableManifest()
		out := manifest.Filter(m, nil, nil)
		assert.Equal(t, m.Resources, out.Resources)
		assert.Equal(t, m.Catalogs, out.Catalogs)
	})

	t.Run("filters resources by name", func(t *testing.T) {
		out := manifest.Filter(searchableManifest(), []string{"stream", "meta"}, nil)
		require.Len(t, out.Resources, 2)
		assert.Equal(t, "stream", out.Resources[0].Name)
		assert.Equal(t, "meta", out.Resources[1].Name)
	})

	t.Run("selecting the base id excludes the synthetic search entry", func(t *testing.T) {
		out := manifest.Filter(searchableManifest(), nil, []manifest.CatalogKey{
			{Type: "movie", ID: "top"},
		})
		require.Len(t, out.Catalogs, 1)
		assert.Equal(t, "top", out.Catalogs[0].ID)
		require.Len(t, out.Catalogs[0].Extra, 1)
		assert.Equal(t, "genre", out.Catalogs[0].Extra[0].Name)
	})

	t.Run("synthetic search entry is selectable on its own", func(t *testing.T) {
		out := manifest.Filter(searchableManifest(), nil, []manifest.CatalogKey{
			{Type: "movie", ID: "top" + manifest.EmbedSearchSuffix},
		})
		require.Len(t, out.Catalogs, 1)
		assert.Equal(t, "top"+manifest.EmbedSearchSuffix, out.Catalogs[0].ID)
		require.Len(t, out.Catalogs[0].Extra, 1)
		assert.Equal(t, "search", out.Catalogs[0].Extra[0].Name)
	})

	t.Run("does not mutate the input manifest", func(t *testing.T) {
		m := searchableManifest()
		_ = manifest.Filter(m, []string{"stream"}, []manifest.CatalogKey{{Type: "movie", ID: "recent"}})
		assert.Len(t, m.Resources, 3)
		assert.Len(t, m.Catalogs, 2)
	})
}
