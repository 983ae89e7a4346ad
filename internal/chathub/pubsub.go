package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pitchmatch/backend/internal/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BroadcastChannel is the Redis channel every instance publishes room events to.
const BroadcastChannel = "hub:broadcast"

type envelope struct {
	Room  string       `json:"room"`
	Event *event.Event `json:"event"`
}

// RedisHub relays publishes through Redis pub/sub so rooms span server instances.
// Membership stays local; every instance delivers relayed events to its own members.
type RedisHub struct {
	*ManagerService
	Redis *redis.Client

	pubsub    *redis.PubSub
	closeOnce sync.Once
	done      chan struct{}
}

func NewRedisHub(rdb *redis.Client, log *zap.Logger) *RedisHub {
	return &RedisHub{
		ManagerService: NewManagerService(log),
		Redis:          rdb,
		done:           make(chan struct{}),
	}
}

// Start subscribes to the broadcast channel and returns once the subscription
// is confirmed, then relays messages until Close.
func (h *RedisHub) Start(ctx context.Context) error {
	h.pubsub = h.Redis.Subscribe(ctx, BroadcastChannel)
	if _, err := h.pubsub.Receive(ctx); err != nil {
		_ = h.pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", BroadcastChannel, err)
	}

	go h.listen(h.pubsub.Channel())
	return nil
}

func (h *RedisHub) listen(ch <-chan *redis.Message) {
	defer close(h.done)

	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == nil {
			h.log.Warn("dropping malformed broadcast", zap.Error(err))
			continue
		}
		h.deliver(env.Room, env.Event)
	}
}

func (h *RedisHub) Publish(ctx context.Context, room string, ev *event.Event) error {
	payload, err := json.Marshal(envelope{Room: room, Event: ev})
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", room, err)
	}
	if err := h.Redis.Publish(ctx, BroadcastChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", room, err)
	}
	return nil
}

// Close stops relaying and waits for the listener to exit.
func (h *RedisHub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.pubsub == nil {
			close(h.done)
			return
		}
		err = h.pubsub.Close()
		<-h.done
	})
	return err
}
