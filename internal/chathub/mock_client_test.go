package chathub_test

import (
	"pitchmatch/backend/internal/event"
	"sync"

	"github.com/google/uuid"
)

// MockClient records every event it is sent instead of writing to a socket.
type MockClient struct {
	id     string
	userID string

	mu     sync.Mutex
	events []*event.Event
	closed bool
}

func newMockClient(userID string) *MockClient {
	return &MockClient{id: uuid.New().String(), userID: userID}
}

func (c *MockClient) ID() string     { return c.id }
func (c *MockClient) UserID() string { return c.userID }

func (c *MockClient) Send(ev *event.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Events() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*event.Event(nil), c.events...)
}

// OfType returns the recorded events of type t, in arrival order.
func (c *MockClient) OfType(t event.Type) []*event.Event {
	var out []*event.Event
	for _, ev := range c.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
