package handler

import (
	"net/http"

	"pitchmatch/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, err := h.pageLimit(c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.Store.ListNotifications(c.Request.Context(), identity(c).UserID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UnreadNotifications(c *gin.Context) {
	n, err := h.Store.UnreadNotifications(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	n, err := h.Store.MarkNotificationsRead(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": n})
}
