package handler

import (
	"pitchmatch/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatSocket upgrades to a chat session for one match. Authorization happens
// before the upgrade so refusals are plain HTTP errors.
func (h *Handler) ChatSocket(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)

	sess, err := chathub.NewChatSession(ctx, h.Deps, id.UserID, c.Param("match_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.serve(c, id.UserID, sess)
}

// PresenceSocket upgrades to the user's global presence session.
func (h *Handler) PresenceSocket(c *gin.Context) {
	id := identity(c)

	sess, err := chathub.NewPresenceSession(h.Deps, id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.serve(c, id.UserID, sess)
}

func (h *Handler) serve(c *gin.Context, userID string, sess chathub.Session) {
	// Counted before the upgrade, while Shutdown still tracks the connection.
	h.sessions.Add(1)
	defer h.sessions.Done()

	// Upgrade writes its own error response.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Info("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(conn, userID, h.opts.SendBuffer, h.log)
	if err := chathub.Serve(c.Request.Context(), sess, client); err != nil {
		h.log.Warn("session ended before start", zap.String("user_id", userID), zap.Error(err))
	}
}
