package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/chathub"
	"pitchmatch/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sendRequest struct {
	Content string `json:"content" binding:"required"`
}

// participantMatch loads the :id match and hides it from non-participants.
func (h *Handler) participantMatch(c *gin.Context, activeOnly bool) (*models.Match, error) {
	ctx := c.Request.Context()
	matchID := c.Param("id")

	get := h.Store.GetMatch
	if activeOnly {
		get = h.Store.GetActiveMatch
	}
	match, err := get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParticipant(identity(c).UserID) {
		return nil, fmt.Errorf("%w: match %s", apperr.ErrNotFound, matchID)
	}
	return match, nil
}

// ListMessages returns a page of the match history in ascending order. Pending
// messages from the counterpart are marked delivered first; nothing is broadcast.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	limit, err := h.pageLimit(c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	match, err := h.participantMatch(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	if _, err := h.Store.AdvanceToDelivered(ctx, match.ID, userID); err != nil {
		h.fail(c, err)
		return
	}
	msgs, err := h.Store.ListMessages(ctx, match.ID, c.Query("before"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) pageLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", apperr.ErrValidation)
	}
	return min(limit, h.opts.PageMax), nil
}

// SendMessage creates a message and announces it to any live sockets.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: content is required", apperr.ErrValidation))
		return
	}
	match, err := h.participantMatch(c, true)
	if err != nil {
		h.fail(c, err)
		return
	}

	msg, err := h.Store.CreateMessage(ctx, match.ID, userID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	log := h.log.With(zap.String("match_id", match.ID), zap.String("message_id", msg.ID))
	if err := chathub.PublishCreated(ctx, h.Deps.Hub, msg); err != nil {
		log.Warn("publish new message", zap.Error(err))
	}
	if h.Deps.Notifier != nil {
		if err := h.Deps.Notifier.MessageCreated(ctx, match, msg); err != nil {
			log.Warn("notify recipient", zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead moves every counterpart message of the match to read.
func (h *Handler) MarkRead(c *gin.Context) {
	h.advance(c, models.StatusRead, "marked_read", h.Store.AdvanceToRead)
}

// MarkDelivered moves every pending counterpart message to delivered and tells
// the sockets of other processes about it.
func (h *Handler) MarkDelivered(c *gin.Context) {
	h.advance(c, models.StatusDelivered, "marked_delivered", h.Store.AdvanceToDelivered)
}

func (h *Handler) advance(c *gin.Context, status models.MessageStatus, key string,
	op func(ctx context.Context, matchID, excludeSender string) ([]string, error)) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	match, err := h.participantMatch(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}
	ids, err := op(ctx, match.ID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	err = chathub.PublishDeliveries(ctx, h.Deps.Hub, match.ID, userID, status, ids,
		chathub.ChatRoom(match.ID), chathub.MatchPresenceRoom(match.ID))
	if err != nil {
		h.log.Warn("publish delivery updates", zap.String("match_id", match.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{key: len(ids)})
}

// UnreadCount counts unread counterpart messages across the caller's active matches.
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.Store.UnreadCount(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}
