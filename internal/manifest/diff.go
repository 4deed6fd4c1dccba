package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash computes a deterministic content hash over the canonical form of a
// manifest. Field order on the wire does not affect the digest.
func Hash(m *Manifest) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}

	// Round-trip through an untyped value so keys serialize sorted.
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("canonicalizing manifest: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalizing manifest: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Diff holds the capability-level changes between two manifests.
type Diff struct {
	AddedResources   []string `json:"added_resources,omitempty"`
	RemovedResources []string `json:"removed_resources,omitempty"`
	AddedCatalogs    []string `json:"added_catalogs,omitempty"`
	RemovedCatalogs  []string `json:"removed_catalogs,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.AddedResources) == 0 && len(d.RemovedResources) == 0 &&
		len(d.AddedCatalogs) == 0 && len(d.RemovedCatalogs) == 0
}

// Compare diffs two manifests into added/removed resource names and catalog
// labels. Catalogs are compared over the search-split expansion, matching
// what Filter produces. A nil side is treated as empty.
func Compare(old, new *Manifest) Diff {
	var d Diff

	oldRes := resourceNameSet(old)
	newRes := resourceNameSet(new)

	if new != nil {
		for _, r := range new.Resources {
			if !oldRes[r.Name] {
				d.AddedResources = append(d.AddedResources, r.Name)
			}
		}
	}
	if old != nil {
		for _, r := range old.Resources {
			if !newRes[r.Name] {
				d.RemovedResources = append(d.RemovedResources, r.Name)
			}
		}
	}

	oldCat := catalogLabelSet(old)
	newCat := catalogLabelSet(new)

	if new != nil {
		for _, c := range SplitSearchCatalogs(new.Catalogs) {
			if label := c.Key().Label(); !oldCat[label] {
				d.AddedCatalogs = append(d.AddedCatalogs, label)
			}
		}
	}
	if old != nil {
		for _, c := range SplitSearchCatalogs(old.Catalogs) {
			if label := c.Key().Label(); !newCat[label] {
				d.RemovedCatalogs = append(d.RemovedCatalogs, label)
			}
		}
	}

	return d
}

func resourceNameSet(m *Manifest) map[string]bool {
	set := make(map[string]bool)
	if m == nil {
		return set
	}
	for _, r := range m.Resources {
		set[r.Name] = true
	}
	return set
}

func catalogLabelSet(m *Manifest) map[string]bool {
	set := make(map[string]bool)
	if m == nil {
		return set
	}
	for _, c := range SplitSearchCatalogs(m.Catalogs) {
		set[c.Key().Label()] = true
	}
	return set
}
