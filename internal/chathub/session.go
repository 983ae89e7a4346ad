package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/event"
	"pitchmatch/backend/internal/models"
	"pitchmatch/backend/internal/presence"
	"pitchmatch/backend/internal/storage"

	"go.uber.org/zap"
)

// State is the lifecycle of a chat or presence session.
type State int32

const (
	StateConnecting State = iota
	StateAuthorized
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the common shape of chat and presence sessions as driven by a transport.
type Session interface {
	Start(ctx context.Context, client Client) error
	Handle(ctx context.Context, raw []byte) error
	Close(ctx context.Context)
	State() State
}

// Serve runs sess over a WebSocket client until the connection ends, then closes
// the session. Close runs on every exit path, panics included.
func Serve(ctx context.Context, sess Session, client *WebSocketClient) error {
	defer sess.Close(ctx)
	defer client.Close()

	if err := sess.Start(ctx, client); err != nil {
		_ = client.conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, client.Close)
	defer stop()
	client.Run(ctx, sess.Handle)
	return nil
}

// Notifier is told about every newly created message.
type Notifier interface {
	MessageCreated(ctx context.Context, match *models.Match, msg *models.Message) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Messages storage.MessageStore
	Matches  storage.MatchDirectory
	Presence presence.Registry
	Hub      Hub
	Notifier Notifier // optional
	Log      *zap.Logger
}

type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) State() State { return State(h.v.Load()) }

func (h *stateHolder) set(s State) { h.v.Store(int32(s)) }

// advance moves from one state to the next and reports whether it was allowed.
func (h *stateHolder) advance(from, to State) bool {
	return h.v.CompareAndSwap(int32(from), int32(to))
}

// retryOnce runs op and, unless it failed with a domain error or the context is
// done, runs it once more. A second failure is logged and returned.
func retryOnce[T any](ctx context.Context, log *zap.Logger, name string, op func() (T, error)) (T, error) {
	v, err := op()
	if err == nil || apperr.IsDomain(err) || ctx.Err() != nil {
		return v, err
	}
	v, err = op()
	if err != nil && !apperr.IsDomain(err) {
		log.Warn("operation degraded after retry", zap.String("op", name), zap.Error(err))
	}
	return v, err
}

func retryOnce3[A any, B any](ctx context.Context, log *zap.Logger, name string, op func() (A, B, error)) (A, B, error) {
	type pair struct {
		a A
		b B
	}
	p, err := retryOnce(ctx, log, name, func() (pair, error) {
		a, b, err := op()
		return pair{a, b}, err
	})
	return p.a, p.b, err
}

func retryOnceErr(ctx context.Context, log *zap.Logger, name string, op func() error) error {
	_, err := retryOnce(ctx, log, name, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// PublishDeliveries broadcasts one delivery_update per id to each room.
func PublishDeliveries(ctx context.Context, hub Hub, matchID, actor string, status models.MessageStatus, ids []string, rooms ...string) error {
	var errs []error
	for _, id := range ids {
		ev := event.DeliveryUpdate(matchID, id, actor, status)
		for _, room := range rooms {
			if err := hub.Publish(ctx, room, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// PublishCreated announces a new message to the open chat and to both
// participants' presence sockets.
func PublishCreated(ctx context.Context, hub Hub, msg *models.Message) error {
	return errors.Join(
		hub.Publish(ctx, ChatRoom(msg.MatchID), event.ChatMessage(msg)),
		hub.Publish(ctx, MatchPresenceRoom(msg.MatchID), event.NewMessage(msg)),
	)
}

// recovered turns a panic inside a frame handler into an error so the read
// loop ends and the session's Close runs.
func recovered(log *zap.Logger, err *error) {
	if r := recover(); r != nil {
		log.Error("session handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		*err = fmt.Errorf("handler panic: %v", r)
	}
}
