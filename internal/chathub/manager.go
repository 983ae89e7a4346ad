package chathub

import (
	"context"
	"sync"

	"pitchmatch/backend/internal/event"

	"go.uber.org/zap"
)

// Hub is the room broadcaster: named groups of clients and best-effort fan-out.
type Hub interface {
	Join(room string, c Client)
	Leave(room string, c Client)
	// Publish delivers ev to every client currently in room. Events published by
	// one goroutine to one room reach each member in publish order.
	Publish(ctx context.Context, room string, ev *event.Event) error
	// Members returns how many clients are joined to room on this instance.
	Members(room string) int
}

// Room keys. Match and user ids are UUIDs, so the two presence forms never collide.
func ChatRoom(matchID string) string          { return "chat:" + matchID }
func MatchPresenceRoom(matchID string) string { return "presence:" + matchID }
func UserRoom(userID string) string           { return "presence:" + userID }

// ManagerService is the in-process Hub.
type ManagerService struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Client
	log   *zap.Logger
}

func NewManagerService(log *zap.Logger) *ManagerService {
	return &ManagerService{
		rooms: make(map[string]map[string]Client),
		log:   log,
	}
}

func (m *ManagerService) Join(room string, c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]Client)
		m.rooms[room] = members
	}
	members[c.ID()] = c
}

func (m *ManagerService) Leave(room string, c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID())
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

func (m *ManagerService) Members(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

func (m *ManagerService) Publish(_ context.Context, room string, ev *event.Event) error {
	m.deliver(room, ev)
	return nil
}

// deliver snapshots the room under the read lock and sends outside it, so a
// slow or closing client never holds up Join/Leave.
func (m *ManagerService) deliver(room string, ev *event.Event) {
	m.mu.RLock()
	members := make([]Client, 0, len(m.rooms[room]))
	for _, c := range m.rooms[room] {
		members = append(members, c)
	}
	m.mu.RUnlock()

	for _, c := range members {
		if !c.Send(ev) {
			m.log.Debug("skipped closed member",
				zap.String("room", room),
				zap.String("conn_id", c.ID()),
				zap.String("event", string(ev.Type)))
		}
	}
}
