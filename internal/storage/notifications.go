package storage

import (
	"context"
	"fmt"
	"pitchmatch/backend/internal/models"
)

func (s *Service) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("save notification for %s: %w", n.RecipientID, err)
	}
	return nil
}

// ListNotifications returns the newest notifications of a recipient first.
func (s *Service) ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

func (s *Service) UnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, err
}

// MarkNotificationsRead flags every unread notification of the recipient and returns how many changed.
func (s *Service) MarkNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
