package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match pairs one investor with one founder. It is the routing key of a chat room.
// The (investor_id, founder_id) unique index keeps at most one Match per pair.
type Match struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	InvestorID string    `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair;index:idx_match_investor_active,priority:1" json:"investor_id"`
	FounderID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair;index:idx_match_founder_active,priority:1" json:"founder_id"`
	IsActive   bool      `gorm:"not null;index:idx_match_investor_active,priority:2;index:idx_match_founder_active,priority:2" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the match if none was set.
func (m *Match) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether userID is one of the two sides of the match.
func (m *Match) HasParticipant(userID string) bool {
	return userID != "" && (m.InvestorID == userID || m.FounderID == userID)
}

// Counterpart returns the other participant, or "" if userID is not in the match.
func (m *Match) Counterpart(userID string) string {
	switch userID {
	case m.InvestorID:
		return m.FounderID
	case m.FounderID:
		return m.InvestorID
	default:
		return ""
	}
}
