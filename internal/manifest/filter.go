package manifest

import "strings"

// EmbedSearchSuffix marks the synthetic catalog entry carved out of a
// search-capable catalog so that search access can be selected independently
// of browsing access.
const EmbedSearchSuffix = "-embed-search"

const searchExtra = "search"

func hasSearchExtra(c Catalog) bool {
	for _, e := range c.Extra {
		if e.Name == searchExtra {
			return true
		}
	}
	return false
}

func hasOtherExtra(c Catalog) bool {
	for _, e := range c.Extra {
		if e.Name != searchExtra {
			return true
		}
	}
	return false
}

// SplitSearchCatalogs expands catalogs that support search alongside other
// filter extras into two logical entries: the base entry without the search
// extra, and a synthetic "<id>-embed-search" entry carrying only it. Filter
// and Diff must both see the same expansion or diffs report false churn.
func SplitSearchCatalogs(catalogs []Catalog) []Catalog {
	out := make([]Catalog, 0, len(catalogs))
	for _, c := range catalogs {
		if !hasSearchExtra(c) || !hasOtherExtra(c) {
			out = append(out, c)
			continue
		}

		base := c
		base.Extra = make([]Extra, 0, len(c.Extra)-1)
		var search []Extra
		for _, e := range c.Extra {
			if e.Name == searchExtra {
				search = append(search, e)
				continue
			}
			base.Extra = append(base.Extra, e)
		}

		synthetic := c
		synthetic.ID = c.ID + EmbedSearchSuffix
		synthetic.Extra = search

		out = append(out, base, synthetic)
	}
	return out
}

// Filter reduces a full manifest to the selections the operator made: every
// resource whose name is not in resources is dropped, and every expanded
// catalog entry whose (type, id) is not in catalogs is dropped. Empty
// selection inputs mean the full capability set passes through unchanged.
func Filter(m *Manifest, resources []string, catalogs []CatalogKey) *Manifest {
	out := *m

	if len(resources) > 0 {
		selected := make(map[string]bool, len(resources))
		for _, name := range resources {
			selected[strings.TrimSpace(name)] = true
		}
		out.Resources = nil
		for _, r := range m.Resources {
			if selected[r.Name] {
				out.Resources = append(out.Resources, r)
			}
		}
	}

	if len(catalogs) > 0 {
		selected := make(map[CatalogKey]bool, len(catalogs))
		for _, k := range catalogs {
			selected[k] = true
		}
		out.Catalogs = nil
		for _, c := range SplitSearchCatalogs(m.Catalogs) {
			if selected[c.Key()] {
				out.Catalogs = append(out.Catalogs, c)
			}
		}
	}

	return &out
}
