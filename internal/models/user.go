package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the side of the marketplace a user belongs to.
type Role string

const (
	RoleFounder  Role = "founder"
	RoleInvestor Role = "investor"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleFounder || r == RoleInvestor
}

// User is the subset of the account record the messaging subsystem needs.
// Accounts themselves are created and managed elsewhere.
type User struct {
	ID   string `gorm:"type:uuid;primaryKey" json:"id"`
	Name string `gorm:"type:text" json:"name"`
	Role Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	// TelegramChatID is set when the user linked a Telegram chat for push notifications.
	TelegramChatID *int64 `gorm:"uniqueIndex" json:"-"`
}

// BeforeCreate generates a UUID for the user if none was set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
