package storage

import (
	"context"
	"fmt"
	"pitchmatch/backend/internal/models"
)

// GetMatch loads a match by id whatever its active flag.
func (s *Service) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	if err := validID("match", matchID); err != nil {
		return nil, err
	}
	var match models.Match
	if err := s.DB.WithContext(ctx).Where("id = ?", matchID).First(&match).Error; err != nil {
		return nil, notFound(err, "match", matchID)
	}
	return &match, nil
}

// GetActiveMatch loads a match only if it is active.
func (s *Service) GetActiveMatch(ctx context.Context, matchID string) (*models.Match, error) {
	if err := validID("match", matchID); err != nil {
		return nil, err
	}
	var match models.Match
	err := s.DB.WithContext(ctx).Where("id = ? AND is_active = ?", matchID, true).First(&match).Error
	if err != nil {
		return nil, notFound(err, "active match", matchID)
	}
	return &match, nil
}

// GetActiveMatchesForUser returns every active match userID takes part in, newest first.
func (s *Service) GetActiveMatchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("investor_id = ? OR founder_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("active matches for %s: %w", userID, err)
	}
	return matches, nil
}

// SaveMatch зберігає матч (insert or update).
func (s *Service) SaveMatch(ctx context.Context, match *models.Match) error {
	return s.DB.WithContext(ctx).Save(match).Error
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := validID("user", userID); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, notFound(err, "user", userID)
	}
	return &user, nil
}

// GetUserByTelegramChatID finds the account a Telegram chat is linked to.
func (s *Service) GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user with telegram chat", fmt.Sprint(chatID))
	}
	return &user, nil
}

// SaveUser зберігає користувача.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}
