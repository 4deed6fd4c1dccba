package models

// Account is the tenant boundary. It owns users, groups and addons, and
// carries the sync configuration plus the wrapped data-encryption key used
// for every secret stored under it.
type Account struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// WrappedDEK is the account's data-encryption key, wrapped with the
	// server's age identity. Never stored or logged unwrapped.
	WrappedDEK []byte `gorm:"not null" json:"-"`

	// APIKeyHash is the encrypted hash of the account's platform API key.
	APIKeyHash string `json:"-"`

	// Sync configuration
	SyncEnabled  bool   `gorm:"default:false" json:"sync_enabled"`
	SyncCronExpr string `gorm:"default:'0 */6 * * *'" json:"sync_cron_expr"`
	// SafeMode keeps the platform's built-in addons exempt from removal.
	SafeMode         bool   `gorm:"default:true" json:"safe_mode"`
	SyncCustomFields bool   `gorm:"default:false" json:"sync_custom_fields"`
	WebhookURL       string `json:"webhook_url"`

	NextSyncAt int64  `gorm:"index" json:"next_sync_at"`
	LastSyncAt *int64 `json:"last_sync_at,omitempty"`

	// Relationships
	Users  []User  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Groups []Group `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Addons []Addon `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}
