package manifest

import (
	"encoding/json"
	"fmt"
)

// Manifest is the capability descriptor an addon publishes.
type Manifest struct {
	ID            string          `json:"id"`
	Version       string          `json:"version,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Logo          string          `json:"logo,omitempty"`
	Background    string          `json:"background,omitempty"`
	Types         []string        `json:"types,omitempty"`
	IDPrefixes    []string        `json:"idPrefixes,omitempty"`
	Resources     []ResourceRef   `json:"resources,omitempty"`
	Catalogs      []Catalog       `json:"catalogs,omitempty"`
	AddonCatalogs []Catalog       `json:"addonCatalogs,omitempty"`
	BehaviorHints json.RawMessage `json:"behaviorHints,omitempty"`
}

// ResourceRef is one named capability. On the wire it appears either as a
// bare string or as an object with types and id prefixes; both forms are
// accepted and the bare form is preserved on output.
type ResourceRef struct {
	Name       string   `json:"name"`
	Types      []string `json:"types,omitempty"`
	IDPrefixes []string `json:"idPrefixes,omitempty"`
}

func (r *ResourceRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = ResourceRef{Name: name}
		return nil
	}

	type alias ResourceRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = ResourceRef(a)
	return nil
}

func (r ResourceRef) MarshalJSON() ([]byte, error) {
	if len(r.Types) == 0 && len(r.IDPrefixes) == 0 {
		return json.Marshal(r.Name)
	}
	type alias ResourceRef
	return json.Marshal(alias(r))
}

// Catalog is a (type, id)-keyed listing capability.
type Catalog struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Extra []Extra `json:"extra,omitempty"`
}

// Extra describes an optional catalog filter capability such as "search",
// "genre" or "skip".
type Extra struct {
	Name         string   `json:"name"`
	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

// Key returns the catalog's identity pair.
func (c Catalog) Key() CatalogKey {
	return CatalogKey{Type: c.Type, ID: c.ID}
}

// CatalogKey identifies a catalog by its (type, id) pair.
type CatalogKey struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Label renders the key for human-readable reports.
func (k CatalogKey) Label() string {
	return k.Type + "/" + k.ID
}

// Parse decodes and validates a manifest at the ingestion boundary. Shape is
// not trusted anywhere past this point.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest missing id")
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s missing name", m.ID)
	}
	return &m, nil
}

// Encode serializes a manifest for storage.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}
