package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CatalogRef identifies a catalog inside a manifest by its (type, id) pair.
type CatalogRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CatalogRefArray stores catalog selections as a JSON text column.
type CatalogRefArray []CatalogRef

// Scan implements the sql.Scanner interface for reading from database
func (a *CatalogRefArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("CatalogRefArray: expected string, got %T", value)
	}

	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// Value implements the driver.Valuer interface for writing to database
func (a CatalogRefArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Contains reports whether the (type, id) pair is selected
func (a CatalogRefArray) Contains(catalogType, catalogID string) bool {
	for _, ref := range a {
		if ref.Type == catalogType && ref.ID == catalogID {
			return true
		}
	}
	return false
}

// Addon is an installable addon owned by an Account. The manifest URL and
// both manifest bodies are encrypted with the account DEK; the hash covers
// the filtered manifest and is safe to store and compare in the clear.
//
// Invariant: ManifestFiltered is always the result of applying Resources and
// Catalogs to ManifestOriginal, and ManifestHash was computed over
// ManifestFiltered.
type Addon struct {
	Base
	AccountID uuid.UUID `gorm:"type:uuid;index;not null" json:"account_id"`
	Name      string    `gorm:"not null" json:"name"`

	EncryptedManifestURL string `gorm:"not null" json:"-"`
	// ManifestOriginal is the full upstream manifest, encrypted.
	ManifestOriginal []byte `json:"-"`
	// ManifestFiltered is the manifest after applying the selections,
	// encrypted. This is what users actually receive.
	ManifestFiltered []byte `json:"-"`
	// ManifestHash is the content hash of the filtered manifest.
	ManifestHash string `gorm:"index" json:"manifest_hash"`

	// Resources lists the selected resource names; empty means all.
	Resources StringArray `gorm:"type:text" json:"resources"`
	// Catalogs lists the selected (type, id) catalog keys; empty means all.
	Catalogs CatalogRefArray `gorm:"type:text" json:"catalogs"`

	Account *Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (Addon) TableName() string {
	return "addons"
}
