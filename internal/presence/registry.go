// Package presence tracks which users currently hold an open presence connection.
package presence

import (
	"context"
	"sort"
	"sync"
)

// Registry is a set of online user ids. A user is online between SetOnline and
// ClearOnline; there is no reference counting across connections, so the last
// writer wins when one user holds several presence sockets.
type Registry interface {
	SetOnline(ctx context.Context, userID string) error
	ClearOnline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

// MemoryRegistry keeps presence in process memory.
type MemoryRegistry struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{online: make(map[string]struct{})}
}

func (r *MemoryRegistry) SetOnline(_ context.Context, userID string) error {
	r.mu.Lock()
	r.online[userID] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) ClearOnline(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.online, userID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) IsOnline(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.online[userID]
	return ok, nil
}

func (r *MemoryRegistry) OnlineUsers(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.online))
	for id := range r.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
