// Package notify turns newly created messages into recipient notifications.
package notify

import (
	"context"
	"fmt"

	"pitchmatch/backend/internal/chathub"
	"pitchmatch/backend/internal/event"
	"pitchmatch/backend/internal/models"
	"pitchmatch/backend/internal/presence"
	"pitchmatch/backend/internal/storage"

	"go.uber.org/zap"
)

// PreviewLength is how many characters of a message a notification carries.
const PreviewLength = 100

// Pusher delivers an out-of-band push, e.g. to Telegram.
type Pusher interface {
	Push(ctx context.Context, chatID int64, title, body string) error
}

// Service persists a notification for every message, announces it on the
// recipient's private room and pushes it when the recipient is offline.
type Service struct {
	Store    storage.NotificationStore
	Users    storage.UserStore
	Presence presence.Registry
	Hub      chathub.Hub
	Pusher   Pusher // optional
	log      *zap.Logger
}

func NewService(store storage.NotificationStore, users storage.UserStore, reg presence.Registry, hub chathub.Hub, pusher Pusher, log *zap.Logger) *Service {
	return &Service{Store: store, Users: users, Presence: reg, Hub: hub, Pusher: pusher, log: log}
}

// MessageCreated implements chathub.Notifier.
func (s *Service) MessageCreated(ctx context.Context, match *models.Match, msg *models.Message) error {
	recipient := match.Counterpart(msg.SenderID)
	if recipient == "" {
		return fmt.Errorf("sender %s is not part of match %s", msg.SenderID, match.ID)
	}

	n := &models.Notification{
		RecipientID:      recipient,
		Type:             models.NotificationMessage,
		Title:            s.title(ctx, msg.SenderID),
		Message:          Preview(msg.Content),
		RelatedUserID:    msg.SenderID,
		RelatedMatchID:   match.ID,
		RelatedMessageID: msg.ID,
	}
	if err := s.Store.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("save notification for %s: %w", recipient, err)
	}

	if err := s.Hub.Publish(ctx, chathub.UserRoom(recipient), event.NotificationEvent(n)); err != nil {
		s.log.Warn("publish notification", zap.String("user_id", recipient), zap.Error(err))
	}

	if s.Pusher != nil {
		s.push(ctx, recipient, n)
	}
	return nil
}

func (s *Service) title(ctx context.Context, senderID string) string {
	sender, err := s.Users.GetUser(ctx, senderID)
	if err != nil || sender.Name == "" {
		return "New message"
	}
	return "New message from " + sender.Name
}

// push is best effort: a failure is logged and never fails the send.
func (s *Service) push(ctx context.Context, recipient string, n *models.Notification) {
	online, err := s.Presence.IsOnline(ctx, recipient)
	if err != nil || online {
		return
	}
	user, err := s.Users.GetUser(ctx, recipient)
	if err != nil || user.TelegramChatID == nil {
		return
	}
	if err := s.Pusher.Push(ctx, *user.TelegramChatID, n.Title, n.Message); err != nil {
		s.log.Warn("push notification", zap.String("user_id", recipient), zap.Error(err))
	}
}

// Preview shortens content to PreviewLength characters.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "..."
}
