package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is an ordered set of addons applied to a set of member users.
type Group struct {
	Base
	AccountID uuid.UUID `gorm:"type:uuid;index;not null" json:"account_id"`
	Name      string    `gorm:"not null" json:"name"`
	// IsPrimary marks the group whose addon list is authoritative for
	// users that belong to more than one group.
	IsPrimary bool `gorm:"default:false" json:"is_primary"`

	// Members is the ordered list of member user ids.
	Members UUIDArray `gorm:"type:text" json:"members"`

	Addons  []GroupAddon `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"addons,omitempty"`
	Account *Account     `gorm:"foreignKey:AccountID" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupAddon joins a Group to an Addon. Position defines the canonical send
// order within the group and is unique per group. Join rows are replaced
// wholesale when the list changes, so they carry no soft-delete column; a
// soft-deleted row would still hold its position in the unique index.
type GroupAddon struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	GroupID   uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_group_position,priority:1;not null" json:"group_id"`
	AddonID   uuid.UUID `gorm:"type:uuid;index;not null" json:"addon_id"`
	Position  int       `gorm:"uniqueIndex:idx_group_position,priority:2;not null" json:"position"`
	IsEnabled bool      `gorm:"default:true" json:"is_enabled"`

	Addon *Addon `gorm:"foreignKey:AddonID" json:"addon,omitempty"`
}

func (ga *GroupAddon) BeforeCreate(tx *gorm.DB) error {
	if ga.ID == uuid.Nil {
		ga.ID = uuid.New()
	}
	return nil
}

func (GroupAddon) TableName() string {
	return "group_addons"
}
