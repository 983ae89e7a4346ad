package telegram

import (
	"context"
	"errors"
	"strings"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/auth"
	"pitchmatch/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	replyLinked       = "Telegram notifications enabled. You will be told about new messages while you are offline."
	replyUnlinked     = "Telegram notifications disabled."
	replyNotLinked    = "This chat is not linked to an account."
	replyUsage        = "Open the link from your notification settings, or send /start <token>."
	replyInvalidToken = "That link has expired. Generate a new one from your notification settings."
	replyFailed       = "An error occurred while processing your request. Please try again later."
)

// LinkHandler processes /start <token> and /stop, which attach and detach a
// Telegram chat to a platform account.
type LinkHandler struct {
	Resolver auth.Resolver
	Users    storage.UserStore
	Bot      Sender
	Log      *zap.Logger
}

// Handle runs command for chatID and replies in the chat. Unknown commands are ignored.
func (h *LinkHandler) Handle(ctx context.Context, chatID int64, command, args string) {
	var reply string
	switch command {
	case "start":
		reply = h.link(ctx, chatID, strings.TrimSpace(args))
	case "stop":
		reply = h.unlink(ctx, chatID)
	default:
		return
	}

	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		h.Log.Warn("send link confirmation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *LinkHandler) link(ctx context.Context, chatID int64, token string) string {
	if token == "" {
		return replyUsage
	}
	id, err := h.Resolver.Resolve(ctx, token)
	if errors.Is(err, apperr.ErrUnauthorized) {
		return replyInvalidToken
	}
	if err != nil {
		h.Log.Error("resolve link token", zap.Error(err))
		return replyFailed
	}

	// A chat belongs to one account at a time.
	if previous, err := h.Users.GetUserByTelegramChatID(ctx, chatID); err == nil && previous.ID != id.UserID {
		previous.TelegramChatID = nil
		if err := h.Users.SaveUser(ctx, previous); err != nil {
			h.Log.Error("unlink previous account", zap.String("user_id", previous.ID), zap.Error(err))
			return replyFailed
		}
	}

	user, err := h.Users.GetUser(ctx, id.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return replyInvalidToken
	}
	if err != nil {
		h.Log.Error("load user for link", zap.String("user_id", id.UserID), zap.Error(err))
		return replyFailed
	}

	user.TelegramChatID = &chatID
	if err := h.Users.SaveUser(ctx, user); err != nil {
		h.Log.Error("save telegram link", zap.String("user_id", user.ID), zap.Error(err))
		return replyFailed
	}
	h.Log.Info("telegram chat linked", zap.String("user_id", user.ID))
	return replyLinked
}

func (h *LinkHandler) unlink(ctx context.Context, chatID int64) string {
	user, err := h.Users.GetUserByTelegramChatID(ctx, chatID)
	if errors.Is(err, apperr.ErrNotFound) {
		return replyNotLinked
	}
	if err != nil {
		h.Log.Error("find linked user", zap.Error(err))
		return replyFailed
	}

	user.TelegramChatID = nil
	if err := h.Users.SaveUser(ctx, user); err != nil {
		h.Log.Error("remove telegram link", zap.String("user_id", user.ID), zap.Error(err))
		return replyFailed
	}
	return replyUnlinked
}
