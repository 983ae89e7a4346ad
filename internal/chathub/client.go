package chathub

import "pitchmatch/backend/internal/event"

// Client is one live connection as seen by the hub. It abstracts the transport
// so rooms can hold WebSocket connections and test doubles uniformly.
type Client interface {
	// ID identifies this connection; one user may hold several.
	ID() string
	// UserID returns the authenticated user behind the connection.
	UserID() string
	// Send queues ev for delivery. It never blocks and returns false when the
	// client is closed or could not keep up (in which case it closes itself).
	Send(ev *event.Event) bool
	// Close releases the transport. Safe to call more than once.
	Close()
}

// filteredClient drops events the session does not want before they reach the wire.
type filteredClient struct {
	Client
	drop func(*event.Event) bool
}

func (f filteredClient) Send(ev *event.Event) bool {
	if f.drop(ev) {
		return true
	}
	return f.Client.Send(ev)
}
