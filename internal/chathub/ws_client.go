package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pitchmatch/backend/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Fits a maximal 5000-character message with multi-byte runes plus framing.
	maxMessageSize = 32 * 1024
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	egress chan *event.Event
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func NewWebSocketClient(conn *websocket.Conn, userID string, buffer int, log *zap.Logger) *WebSocketClient {
	if buffer <= 0 {
		buffer = 256
	}
	id := uuid.New().String()
	return &WebSocketClient{
		id:     id,
		userID: userID,
		conn:   conn,
		egress: make(chan *event.Event, buffer),
		done:   make(chan struct{}),
		log:    log.With(zap.String("conn_id", id), zap.String("user_id", userID)),
	}
}

func (c *WebSocketClient) ID() string     { return c.id }
func (c *WebSocketClient) UserID() string { return c.userID }

// Send never blocks: a client whose buffer is full is disconnected.
func (c *WebSocketClient) Send(ev *event.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.egress <- ev:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("send buffer full, disconnecting slow client")
		c.Close()
		return false
	}
}

// Close signals both pumps to stop. egress is never closed, so concurrent
// publishers cannot panic on a send to a closed channel.
func (c *WebSocketClient) Close() {
	c.once.Do(func() { close(c.done) })
}

// Run starts the write pump and reads frames until the connection fails or is
// closed, passing each to handle. An error from handle ends the connection.
func (c *WebSocketClient) Run(ctx context.Context, handle func(context.Context, []byte) error) {
	go c.writePump()
	c.readPump(ctx, handle)
}

func (c *WebSocketClient) readPump(ctx context.Context, handle func(context.Context, []byte) error) {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("websocket read failed", zap.Error(err))
			}
			return
		}
		if err := handle(ctx, message); err != nil {
			c.log.Error("closing connection after handler failure", zap.Error(err))
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.egress:
			payload, err := json.Marshal(ev)
			if err != nil {
				c.log.Error("encode event", zap.String("event", string(ev.Type)), zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
