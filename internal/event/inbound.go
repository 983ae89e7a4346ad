package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Decode for frames whose tag is not recognised.
var ErrUnknownType = errors.New("unknown event type")

// Inbound is a decoded client frame. The concrete types below are the only
// implementations; sessions switch on them exhaustively.
type Inbound interface {
	inbound()
}

// Send asks the chat session to create a message.
type Send struct {
	Content string
}

// ReadAck marks a single message as read.
type ReadAck struct {
	MessageID string
}

// MarkAllRead marks every message of the open match as read.
type MarkAllRead struct{}

// TypingInput is a typing indicator. MatchID is only set on presence sockets.
type TypingInput struct {
	MatchID  string
	IsTyping bool
}

type Heartbeat struct{}

func (Send) inbound()        {}
func (ReadAck) inbound()     {}
func (MarkAllRead) inbound() {}
func (TypingInput) inbound() {}
func (Heartbeat) inbound()   {}

type frame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
	MatchID   string `json:"match_id"`
	IsTyping  bool   `json:"is_typing"`
}

// Decode parses one client frame into its variant.
func Decode(raw []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case "chat_message":
		return Send{Content: f.Content}, nil
	case "message_read":
		if f.MessageID == "" {
			return nil, fmt.Errorf("decode frame: message_read without message_id")
		}
		return ReadAck{MessageID: f.MessageID}, nil
	case "mark_all_read":
		return MarkAllRead{}, nil
	case "typing":
		return TypingInput{MatchID: f.MatchID, IsTyping: f.IsTyping}, nil
	case "heartbeat":
		return Heartbeat{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}
