package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Pusher delivers notification pushes to linked Telegram chats.
type Pusher struct {
	Bot Sender
}

func NewPusher(bot Sender) *Pusher {
	return &Pusher{Bot: bot}
}

// Push sends a bold title and a plain body to chatID.
func (p *Pusher) Push(ctx context.Context, chatID int64, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, "*"+escapeMarkdown(title)+"*\n"+escapeMarkdown(body))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := p.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram push to %d: %w", chatID, err)
	}
	return nil
}

// escapeMarkdown escapes the characters legacy Markdown treats as formatting.
func escapeMarkdown(text string) string {
	return strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	).Replace(text)
}
