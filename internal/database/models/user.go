package models

import "github.com/google/uuid"

// User is a platform end-user account managed by an Account. Its platform
// auth key is stored encrypted with the account DEK.
type User struct {
	Base
	AccountID uuid.UUID `gorm:"type:uuid;index;not null" json:"account_id"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`

	// EncryptedAuthKey is the platform session key, AES-GCM under the
	// account DEK, base64.
	EncryptedAuthKey string `json:"-"`

	// ExcludedAddons lists addon ids this user opted out of.
	ExcludedAddons UUIDArray `gorm:"type:text" json:"excluded_addons"`
	// ProtectedAddons lists addon names (not ids: protection must survive
	// an addon being deleted and re-created) that are never removed from
	// this user's collection.
	ProtectedAddons StringArray `gorm:"type:text" json:"protected_addons"`

	Account *Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
