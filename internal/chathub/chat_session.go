package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/event"
	"pitchmatch/backend/internal/models"

	"go.uber.org/zap"
)

// ChatSession is one user's connection to one match's conversation.
type ChatSession struct {
	stateHolder
	deps   Deps
	userID string
	match  *models.Match
	client Client
	log    *zap.Logger
	once   sync.Once
}

// NewChatSession authorizes userID for matchID. It fails with ErrUnauthorized
// without an identity, ErrNotFound for a missing or inactive match and
// ErrForbidden when the user is not one of the two participants.
func NewChatSession(ctx context.Context, deps Deps, userID, matchID string) (*ChatSession, error) {
	s := &ChatSession{
		deps:   deps,
		userID: userID,
		log:    deps.Log.With(zap.String("user_id", userID), zap.String("match_id", matchID)),
	}

	if userID == "" {
		s.set(StateClosed)
		return nil, apperr.ErrUnauthorized
	}
	match, err := retryOnce(ctx, s.log, "get_active_match", func() (*models.Match, error) {
		return deps.Matches.GetActiveMatch(ctx, matchID)
	})
	if err != nil {
		s.set(StateClosed)
		return nil, err
	}
	if !match.HasParticipant(userID) {
		s.set(StateClosed)
		return nil, fmt.Errorf("%w: %s is not part of match %s", apperr.ErrForbidden, userID, matchID)
	}

	s.match = match
	s.set(StateAuthorized)
	return s, nil
}

func (s *ChatSession) Match() *models.Match { return s.match }

// Start joins the chat room and marks the counterpart's pending messages delivered.
func (s *ChatSession) Start(ctx context.Context, client Client) error {
	if !s.advance(StateAuthorized, StateActive) {
		return fmt.Errorf("start chat session in state %s", s.State())
	}
	s.client = filteredClient{Client: client, drop: func(ev *event.Event) bool {
		return ev.Type == event.TypeTyping && ev.UserID == s.userID
	}}
	s.log = s.log.With(zap.String("conn_id", client.ID()))
	s.deps.Hub.Join(ChatRoom(s.match.ID), s.client)

	ids, err := retryOnce(ctx, s.log, "advance_to_delivered", func() ([]string, error) {
		return s.deps.Messages.AdvanceToDelivered(ctx, s.match.ID, s.userID)
	})
	if err == nil {
		s.publishDeliveries(ctx, s.match.ID, models.StatusDelivered, ids)
	}
	return nil
}

// Handle processes one inbound frame. Malformed and unknown frames are dropped.
func (s *ChatSession) Handle(ctx context.Context, raw []byte) (err error) {
	defer recovered(s.log, &err)

	if s.State() != StateActive {
		return nil
	}
	in, err := event.Decode(raw)
	if err != nil {
		s.log.Debug("dropping frame", zap.Error(err))
		return nil
	}

	switch v := in.(type) {
	case event.Send:
		s.send(ctx, v.Content)
	case event.ReadAck:
		s.readAck(ctx, v.MessageID)
	case event.MarkAllRead:
		s.markAllRead(ctx)
	case event.TypingInput:
		s.publish(ctx, ChatRoom(s.match.ID), event.Typing(s.match.ID, s.userID, v.IsTyping))
	case event.Heartbeat:
		s.client.Send(event.HeartbeatAck())
	}
	return nil
}

func (s *ChatSession) send(ctx context.Context, content string) {
	msg, err := retryOnce(ctx, s.log, "create_message", func() (*models.Message, error) {
		return s.deps.Messages.CreateMessage(ctx, s.match.ID, s.userID, content)
	})
	if err != nil {
		s.reject(err)
		return
	}

	recipient := s.match.Counterpart(s.userID)
	online, err := retryOnce(ctx, s.log, "is_online", func() (bool, error) {
		return s.deps.Presence.IsOnline(ctx, recipient)
	})
	deliveredNow := false
	if err == nil && online {
		updated, changed, err := retryOnce3(ctx, s.log, "mark_one_delivered", func() (*models.Message, bool, error) {
			return s.deps.Messages.MarkOneDelivered(ctx, msg.ID, recipient)
		})
		if err == nil && changed {
			msg, deliveredNow = updated, true
		}
	}

	if err := PublishCreated(ctx, s.deps.Hub, msg); err != nil {
		s.log.Warn("publish new message", zap.Error(err))
	}
	if deliveredNow {
		err := PublishDeliveries(ctx, s.deps.Hub, s.match.ID, recipient, models.StatusDelivered,
			[]string{msg.ID}, MatchPresenceRoom(s.match.ID))
		if err != nil {
			s.log.Warn("publish delivery", zap.Error(err))
		}
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.MessageCreated(ctx, s.match, msg); err != nil {
			s.log.Warn("notify recipient", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
}

func (s *ChatSession) readAck(ctx context.Context, messageID string) {
	msg, changed, err := retryOnce3(ctx, s.log, "mark_one_read", func() (*models.Message, bool, error) {
		return s.deps.Messages.MarkOneRead(ctx, messageID, s.userID)
	})
	if err != nil {
		s.reject(err)
		return
	}
	if changed {
		s.publishDeliveries(ctx, msg.MatchID, models.StatusRead, []string{msg.ID})
	}
}

func (s *ChatSession) markAllRead(ctx context.Context) {
	ids, err := retryOnce(ctx, s.log, "advance_to_read", func() ([]string, error) {
		return s.deps.Messages.AdvanceToRead(ctx, s.match.ID, s.userID)
	})
	if err != nil {
		return
	}
	s.publishDeliveries(ctx, s.match.ID, models.StatusRead, ids)
}

func (s *ChatSession) publishDeliveries(ctx context.Context, matchID string, status models.MessageStatus, ids []string) {
	err := PublishDeliveries(ctx, s.deps.Hub, matchID, s.userID, status, ids,
		ChatRoom(matchID), MatchPresenceRoom(matchID))
	if err != nil {
		s.log.Warn("publish delivery updates", zap.Int("count", len(ids)), zap.Error(err))
	}
}

func (s *ChatSession) publish(ctx context.Context, room string, ev *event.Event) {
	if err := s.deps.Hub.Publish(ctx, room, ev); err != nil {
		s.log.Warn("publish", zap.String("room", room), zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

// reject answers the caller alone; nothing is broadcast.
func (s *ChatSession) reject(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.client.Send(event.Error(apperr.Code(err)))
}

// Close leaves the chat room exactly once. Chat sessions have no presence side effects.
func (s *ChatSession) Close(context.Context) {
	s.once.Do(func() {
		prev := s.State()
		s.set(StateClosed)
		if prev != StateActive {
			return
		}
		s.deps.Hub.Leave(ChatRoom(s.match.ID), s.client)
		s.client.Close()
		s.log.Debug("chat session closed")
	})
}
