// Package telegram integrates the Telegram Bot API: it pushes message
// notifications to offline users and lets them link a chat to their account.
package telegram

import (
	"context"
	"fmt"

	"pitchmatch/backend/internal/auth"
	"pitchmatch/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotService receives Telegram updates and routes commands to the link handler.
type BotService struct {
	BotAPI *tgbotapi.BotAPI
	Links  *LinkHandler
	log    *zap.Logger
}

// NewBotService authorizes against the Bot API with token.
func NewBotService(token string, resolver auth.Resolver, users storage.UserStore, log *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = false
	log.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI: bot,
		Links:  &LinkHandler{Resolver: resolver, Users: users, Bot: bot, Log: log},
		log:    log,
	}, nil
}

// Pusher returns a Pusher sharing this bot's connection.
func (s *BotService) Pusher() *Pusher {
	return NewPusher(s.BotAPI)
}

// Run is the main loop for receiving Telegram updates. It returns when ctx is done.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			s.Links.Handle(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())
		}
	}
}
