package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType classifies a Notification.
type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationMatch   NotificationType = "match"
)

// Notification is a persisted, per-recipient alert. Message notifications are
// created by this subsystem; other types are written by external collaborators.
type Notification struct {
	ID               string           `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID      string           `gorm:"type:uuid;not null;index:idx_notification_recipient,priority:1" json:"recipient_id"`
	Type             NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title            string           `gorm:"type:varchar(255);not null" json:"title"`
	Message          string           `gorm:"type:text" json:"message"`
	RelatedUserID    string           `gorm:"type:text" json:"related_user_id,omitempty"`
	RelatedMatchID   string           `gorm:"type:text" json:"related_match_id,omitempty"`
	RelatedMessageID string           `gorm:"type:text" json:"related_message_id,omitempty"`
	IsRead           bool             `gorm:"not null;index:idx_notification_recipient,priority:2" json:"is_read"`
	CreatedAt        time.Time        `json:"created_at"`
}

// BeforeCreate generates a UUID for the notification if none was set.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
