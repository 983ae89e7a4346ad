package handler

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/auth"
	"pitchmatch/backend/internal/chathub"
	"pitchmatch/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tune the HTTP surface.
type Options struct {
	// SendBuffer is the outbound queue length of each socket.
	SendBuffer int
	// PageMax caps the limit query parameter of message listings.
	PageMax int
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// Handler serves the socket endpoints and the REST fallback.
type Handler struct {
	Resolver auth.Resolver
	Store    storage.Storage
	Deps     chathub.Deps
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.Logger
	// sessions counts sockets whose session has not finished closing.
	sessions sync.WaitGroup
}

func NewHandler(resolver auth.Resolver, store storage.Storage, deps chathub.Deps, opts Options) *Handler {
	if opts.PageMax <= 0 {
		opts.PageMax = storage.MaxPageSize
	}
	h := &Handler{
		Resolver: resolver,
		Store:    store,
		Deps:     deps,
		opts:     opts,
		log:      deps.Log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

// Drain waits until every socket session has run its close path. Call it
// after http.Server.Shutdown: Shutdown does not wait for hijacked connections.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health answers liveness probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err as {"message": ...} with the status of its class.
// Errors outside the domain taxonomy are logged and hidden from the caller.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}
