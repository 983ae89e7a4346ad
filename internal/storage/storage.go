package storage

import (
	"context"
	"errors"
	"fmt"
	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultPageSize is the number of messages returned when no limit is given.
	DefaultPageSize = 50
	// MaxPageSize caps a single ListMessages call.
	MaxPageSize = 200
)

// MessageStore is the durable record of messages and their delivery state.
// Every status-changing call is set-based and idempotent: a second caller racing
// for the same transition observes zero affected messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, matchID, senderID, content string) (*models.Message, error)
	ListMessages(ctx context.Context, matchID, beforeID string, limit int) ([]models.Message, error)
	AdvanceToDelivered(ctx context.Context, matchID, excludeSender string) ([]string, error)
	AdvanceToRead(ctx context.Context, matchID, excludeSender string) ([]string, error)
	MarkOneDelivered(ctx context.Context, messageID, actor string) (*models.Message, bool, error)
	MarkOneRead(ctx context.Context, messageID, actor string) (*models.Message, bool, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// MatchDirectory answers which matches exist and who takes part in them.
type MatchDirectory interface {
	// GetMatch returns the match regardless of its active flag.
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	// GetActiveMatch returns apperr.ErrNotFound for missing and inactive matches alike.
	GetActiveMatch(ctx context.Context, matchID string) (*models.Match, error)
	GetActiveMatchesForUser(ctx context.Context, userID string) ([]models.Match, error)
	SaveMatch(ctx context.Context, match *models.Match) error
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// GetUserByTelegramChatID finds the account a Telegram chat is linked to.
	GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

type NotificationStore interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	UnreadNotifications(ctx context.Context, recipientID string) (int64, error)
	MarkNotificationsRead(ctx context.Context, recipientID string) (int64, error)
}

// Storage is everything the server needs from persistence.
type Storage interface {
	MessageStore
	MatchDirectory
	UserStore
	NotificationStore
}

// Service implements Storage on top of gorm (PostgreSQL in production).
type Service struct {
	DB  *gorm.DB
	now func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the tables owned by this service.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.Message{},
		&models.Notification{},
	)
}

// notFound translates gorm's missing-row error into the domain taxonomy.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", apperr.ErrNotFound, what, id)
	}
	return err
}

// validID rejects ids that a uuid column would refuse with a driver error.
func validID(what, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %q", apperr.ErrNotFound, what, id)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func statusStrings(statuses []models.MessageStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
