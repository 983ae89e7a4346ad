package chathub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/event"
	"pitchmatch/backend/internal/models"

	"go.uber.org/zap"
)

// teardownTimeout bounds the Closed-transition cleanup, which runs detached
// from the request context.
const teardownTimeout = 5 * time.Second

// PresenceSession is a user's global connection: online status, match-scoped
// typing, unread badges and delivery mirrors for every active match.
type PresenceSession struct {
	stateHolder
	deps    Deps
	userID  string
	client  Client
	log     *zap.Logger
	once    sync.Once
	matches map[string]*models.Match // joined presence:<match> rooms
}

func NewPresenceSession(deps Deps, userID string) (*PresenceSession, error) {
	s := &PresenceSession{
		deps:    deps,
		userID:  userID,
		log:     deps.Log.With(zap.String("user_id", userID)),
		matches: make(map[string]*models.Match),
	}
	if userID == "" {
		s.set(StateClosed)
		return nil, apperr.ErrUnauthorized
	}
	s.set(StateAuthorized)
	return s, nil
}

// Start marks the user online, joins every room and sends the initial snapshot.
func (s *PresenceSession) Start(ctx context.Context, client Client) error {
	if !s.advance(StateAuthorized, StateActive) {
		return fmt.Errorf("start presence session in state %s", s.State())
	}
	s.client = filteredClient{Client: client, drop: func(ev *event.Event) bool {
		return ev.Echoes(s.userID)
	}}
	s.log = s.log.With(zap.String("conn_id", client.ID()))

	_ = retryOnceErr(ctx, s.log, "set_online", func() error {
		return s.deps.Presence.SetOnline(ctx, s.userID)
	})
	s.deps.Hub.Join(UserRoom(s.userID), s.client)

	matches, err := retryOnce(ctx, s.log, "get_active_matches", func() ([]models.Match, error) {
		return s.deps.Matches.GetActiveMatchesForUser(ctx, s.userID)
	})
	if err != nil {
		matches = nil
	}
	for i := range matches {
		m := &matches[i]
		s.matches[m.ID] = m
		s.deps.Hub.Join(MatchPresenceRoom(m.ID), s.client)
	}

	online := event.StatusUpdate(s.userID, true)
	for _, m := range matches {
		s.publish(ctx, MatchPresenceRoom(m.ID), online)
	}

	for _, m := range matches {
		ids, err := retryOnce(ctx, s.log, "advance_to_delivered", func() ([]string, error) {
			return s.deps.Messages.AdvanceToDelivered(ctx, m.ID, s.userID)
		})
		if err != nil {
			continue
		}
		err = PublishDeliveries(ctx, s.deps.Hub, m.ID, s.userID, models.StatusDelivered, ids,
			ChatRoom(m.ID), MatchPresenceRoom(m.ID))
		if err != nil {
			s.log.Warn("publish delivery updates", zap.String("match_id", m.ID), zap.Error(err))
		}
	}

	statuses := make(map[string]bool, len(matches))
	for _, m := range matches {
		other := m.Counterpart(s.userID)
		isOnline, err := retryOnce(ctx, s.log, "is_online", func() (bool, error) {
			return s.deps.Presence.IsOnline(ctx, other)
		})
		statuses[other] = err == nil && isOnline
	}
	s.client.Send(event.InitialStatuses(statuses))
	return nil
}

// Handle processes one inbound frame. Only typing and heartbeat are meaningful here.
func (s *PresenceSession) Handle(ctx context.Context, raw []byte) (err error) {
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
	case event.TypingInput:
		if _, joined := s.matches[v.MatchID]; !joined {
			return nil
		}
		s.publish(ctx, MatchPresenceRoom(v.MatchID), event.Typing(v.MatchID, s.userID, v.IsTyping))
	case event.Heartbeat:
		s.client.Send(event.HeartbeatAck())
	}
	return nil
}

func (s *PresenceSession) publish(ctx context.Context, room string, ev *event.Event) {
	if err := s.deps.Hub.Publish(ctx, room, ev); err != nil {
		s.log.Warn("publish", zap.String("room", room), zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

// Close runs the Closed-transition exactly once: leave every room, clear the
// online flag, then announce the user offline. It ignores cancellation of ctx
// so an aborted request still cleans up.
func (s *PresenceSession) Close(ctx context.Context) {
	s.once.Do(func() {
		prev := s.State()
		s.set(StateClosed)
		if prev != StateActive {
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()

		for id := range s.matches {
			s.deps.Hub.Leave(MatchPresenceRoom(id), s.client)
		}
		s.deps.Hub.Leave(UserRoom(s.userID), s.client)
		s.client.Close()

		err := retryOnceErr(ctx, s.log, "clear_online", func() error {
			return s.deps.Presence.ClearOnline(ctx, s.userID)
		})
		if err != nil {
			s.log.Error("user may appear online until cleared manually", zap.Error(err))
		}

		offline := event.StatusUpdate(s.userID, false)
		for id := range s.matches {
			s.publish(ctx, MatchPresenceRoom(id), offline)
		}
		s.log.Debug("presence session closed")
	})
}
