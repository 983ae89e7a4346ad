package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageStatus is the delivery lifecycle of a message: sent -> delivered -> read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// MaxContentLength is the upper bound on message content, in code points.
const MaxContentLength = 5000

func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	return s.rank() > 0
}

// Before reports whether s comes strictly earlier than other in the lifecycle.
// Status only ever moves forward, so a transition from s to other is allowed iff s.Before(other).
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.Valid() && other.Valid() && s.rank() < other.rank()
}

// PrecedingStatuses lists every status a message may be in to be advanced to target.
func PrecedingStatuses(target MessageStatus) []MessageStatus {
	var out []MessageStatus
	for _, s := range []MessageStatus{StatusSent, StatusDelivered} {
		if s.Before(target) {
			out = append(out, s)
		}
	}
	return out
}

// Message is a single chat message within a Match.
type Message struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	MatchID     string        `gorm:"type:uuid;not null;index:idx_message_match_created,priority:1;index:idx_message_match_status,priority:1" json:"match_id"`
	SenderID    string        `gorm:"type:uuid;not null;index:idx_message_sender_status,priority:1" json:"sender_id"`
	Content     string        `gorm:"type:text;not null" json:"content"`
	Status      MessageStatus `gorm:"type:varchar(20);not null;index:idx_message_match_status,priority:2;index:idx_message_sender_status,priority:2" json:"status"`
	DeliveredAt *time.Time    `json:"delivered_at"`
	ReadAt      *time.Time    `json:"read_at"`
	CreatedAt   time.Time     `gorm:"index:idx_message_match_created,priority:2" json:"created_at"`
}

// BeforeCreate generates a UUID for the message if none was set.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Advance moves the message to target, stamping the matching timestamp.
// It returns false and leaves the message untouched if target is not ahead of the current status.
func (m *Message) Advance(target MessageStatus, at time.Time) bool {
	if !m.Status.Before(target) {
		return false
	}
	m.Status = target
	switch target {
	case StatusDelivered:
		m.DeliveredAt = &at
	case StatusRead:
		m.ReadAt = &at
	}
	return true
}
