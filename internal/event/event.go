// Package event defines the JSON frames exchanged over chat and presence sockets.
package event

import (
	"pitchmatch/backend/internal/models"
	"time"
)

// Type is the "type" discriminator carried by every frame.
type Type string

const (
	TypeChatMessage     Type = "chat_message"
	TypeDeliveryUpdate  Type = "delivery_update"
	TypeTyping          Type = "typing"
	TypeStatusUpdate    Type = "status_update"
	TypeNewMessage      Type = "new_message"
	TypeInitialStatuses Type = "initial_statuses"
	TypeHeartbeatAck    Type = "heartbeat_ack"
	TypeNotification    Type = "notification"
	TypeError           Type = "error"
)

// Message is the one-level nested view of a stored message.
type Message struct {
	ID          string `json:"id"`
	MatchID     string `json:"match_id"`
	SenderID    string `json:"sender_id"`
	Content     string `json:"content"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	DeliveredAt string `json:"delivered_at,omitempty"`
	ReadAt      string `json:"read_at,omitempty"`
}

// Notification is the realtime view of a persisted notification.
type Notification struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	RelatedUserID  string `json:"related_user_id,omitempty"`
	RelatedMatchID string `json:"related_match_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Event is an outbound frame. Only the fields relevant to Type are set.
type Event struct {
	Type         Type            `json:"type"`
	MatchID      string          `json:"match_id,omitempty"`
	MessageID    string          `json:"message_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	IsTyping     *bool           `json:"is_typing,omitempty"`
	Online       *bool           `json:"online,omitempty"`
	Statuses     map[string]bool `json:"statuses,omitempty"`
	Message      *Message        `json:"message,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Timestamp renders t the way every frame carries time: ISO-8601 in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Timestamp(*t)
}

func messageView(m *models.Message) *Message {
	return &Message{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		Status:      string(m.Status),
		CreatedAt:   Timestamp(m.CreatedAt),
		DeliveredAt: optionalTimestamp(m.DeliveredAt),
		ReadAt:      optionalTimestamp(m.ReadAt),
	}
}

// ChatMessage is published to chat:<match> when a message is created.
func ChatMessage(m *models.Message) *Event {
	return &Event{Type: TypeChatMessage, MatchID: m.MatchID, Message: messageView(m)}
}

// NewMessage is published to presence:<match> for unread badges.
func NewMessage(m *models.Message) *Event {
	return &Event{Type: TypeNewMessage, MatchID: m.MatchID, UserID: m.SenderID, Message: messageView(m)}
}

// DeliveryUpdate reports that messageID reached status; actor is the user
// whose connection, fetch or acknowledgement caused it.
func DeliveryUpdate(matchID, messageID, actor string, status models.MessageStatus) *Event {
	return &Event{
		Type:      TypeDeliveryUpdate,
		MatchID:   matchID,
		MessageID: messageID,
		UserID:    actor,
		Status:    string(status),
	}
}

func Typing(matchID, userID string, isTyping bool) *Event {
	return &Event{Type: TypeTyping, MatchID: matchID, UserID: userID, IsTyping: &isTyping}
}

func StatusUpdate(userID string, online bool) *Event {
	return &Event{Type: TypeStatusUpdate, UserID: userID, Online: &online}
}

func InitialStatuses(statuses map[string]bool) *Event {
	if statuses == nil {
		statuses = map[string]bool{}
	}
	return &Event{Type: TypeInitialStatuses, Statuses: statuses}
}

func HeartbeatAck() *Event {
	return &Event{Type: TypeHeartbeatAck}
}

func NotificationEvent(n *models.Notification) *Event {
	return &Event{
		Type: TypeNotification,
		Notification: &Notification{
			ID:             n.ID,
			Type:           string(n.Type),
			Title:          n.Title,
			Message:        n.Message,
			RelatedUserID:  n.RelatedUserID,
			RelatedMatchID: n.RelatedMatchID,
			CreatedAt:      Timestamp(n.CreatedAt),
		},
	}
}

// Error carries an apperr code back to the caller only.
func Error(code string) *Event {
	return &Event{Type: TypeError, Error: code}
}

// Echoes reports whether ev was caused by userID, so a receiver can skip it.
func (e *Event) Echoes(userID string) bool {
	switch e.Type {
	case TypeTyping, TypeStatusUpdate, TypeDeliveryUpdate, TypeNewMessage:
		return e.UserID != "" && e.UserID == userID
	}
	return false
}
