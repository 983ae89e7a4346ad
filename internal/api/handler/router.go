// Package handler exposes the messaging subsystem over HTTP: two WebSocket
// endpoints and the REST fallback for clients without a live socket.
package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(h.opts.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = h.opts.AllowedOrigins
	} else {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Health)

	authed := r.Group("/", h.Authenticate)
	authed.GET("/ws/chat/:match_id", h.ChatSocket)
	authed.GET("/ws/presence", h.PresenceSocket)

	matches := authed.Group("/matches/:id/messages")
	matches.GET("", h.ListMessages)
	matches.POST("/send", h.SendMessage)
	matches.PUT("/mark-read", h.MarkRead)
	matches.POST("/mark-delivered", h.MarkDelivered)

	authed.GET("/messages/unread-count", h.UnreadCount)

	authed.GET("/notifications", h.ListNotifications)
	authed.GET("/notifications/unread-count", h.UnreadNotifications)
	authed.POST("/notifications/mark-read", h.MarkNotificationsRead)
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
