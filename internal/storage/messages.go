package storage

import (
	"context"
	"fmt"
	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/models"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// CreateMessage validates content and stores a new message at status "sent".
func (s *Service) CreateMessage(ctx context.Context, matchID, senderID, content string) (*models.Message, error) {
	text, err := NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	match, err := s.GetActiveMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: %s is not part of match %s", apperr.ErrNotFound, senderID, matchID)
	}

	msg := &models.Message{
		MatchID:   match.ID,
		SenderID:  senderID,
		Content:   text,
		Status:    models.StatusSent,
		CreatedAt: s.now(),
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save message for match %s: %w", matchID, err)
	}
	return msg, nil
}

// ListMessages returns up to limit messages strictly older than beforeID (or the
// most recent ones when beforeID is empty), in ascending chronological order.
func (s *Service) ListMessages(ctx context.Context, matchID, beforeID string, limit int) ([]models.Message, error) {
	if err := validID("match", matchID); err != nil {
		return nil, err
	}

	q := s.DB.WithContext(ctx).Where("match_id = ?", matchID)
	if beforeID != "" {
		if err := validID("message", beforeID); err != nil {
			return nil, err
		}
		var pivot models.Message
		err := s.DB.WithContext(ctx).Where("id = ? AND match_id = ?", beforeID, matchID).First(&pivot).Error
		if err != nil {
			return nil, notFound(err, "message", beforeID)
		}
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var page []models.Message
	if err := q.Order("created_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&page).Error; err != nil {
		return nil, fmt.Errorf("list messages for match %s: %w", matchID, err)
	}
	return lo.Reverse(page), nil
}

// AdvanceToDelivered moves every "sent" message of the match not authored by
// excludeSender to "delivered" and returns the ids that actually changed.
func (s *Service) AdvanceToDelivered(ctx context.Context, matchID, excludeSender string) ([]string, error) {
	return s.advance(ctx, matchID, excludeSender, models.StatusDelivered)
}

// AdvanceToRead moves every "sent" or "delivered" message of the match not
// authored by excludeSender to "read" and returns the ids that actually changed.
func (s *Service) AdvanceToRead(ctx context.Context, matchID, excludeSender string) ([]string, error) {
	return s.advance(ctx, matchID, excludeSender, models.StatusRead)
}

// advance claims each candidate with a conditional UPDATE, so concurrent callers
// split the rows between them and every transition is reported exactly once.
func (s *Service) advance(ctx context.Context, matchID, excludeSender string, target models.MessageStatus) ([]string, error) {
	if err := validID("match", matchID); err != nil {
		return nil, err
	}
	from := statusStrings(models.PrecedingStatuses(target))
	changed := []string{}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []string
		if err := tx.Model(&models.Message{}).
			Where("match_id = ? AND sender_id <> ? AND status IN ?", matchID, excludeSender, from).
			Order("created_at ASC").
			Pluck("id", &candidates).Error; err != nil {
			return err
		}

		now := s.now()
		for _, id := range candidates {
			res := tx.Model(&models.Message{}).
				Where("id = ? AND status IN ?", id, from).
				Updates(stampFor(target, now))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				changed = append(changed, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("advance match %s to %s: %w", matchID, target, err)
	}
	return changed, nil
}

// MarkOneDelivered advances a single message on behalf of actor. It is a no-op
// when actor sent the message or the message is already delivered or read.
func (s *Service) MarkOneDelivered(ctx context.Context, messageID, actor string) (*models.Message, bool, error) {
	return s.markOne(ctx, messageID, actor, models.StatusDelivered)
}

// MarkOneRead is MarkOneDelivered for the "read" state.
func (s *Service) MarkOneRead(ctx context.Context, messageID, actor string) (*models.Message, bool, error) {
	return s.markOne(ctx, messageID, actor, models.StatusRead)
}

func (s *Service) markOne(ctx context.Context, messageID, actor string, target models.MessageStatus) (*models.Message, bool, error) {
	if err := validID("message", messageID); err != nil {
		return nil, false, err
	}
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	match, err := s.GetMatch(ctx, msg.MatchID)
	if err != nil {
		return nil, false, err
	}
	if !match.HasParticipant(actor) {
		return nil, false, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}
	if msg.SenderID == actor || !msg.Status.Before(target) {
		return msg, false, nil
	}

	from := statusStrings(models.PrecedingStatuses(target))
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status IN ?", messageID, from).
		Updates(stampFor(target, s.now()))
	if res.Error != nil {
		return nil, false, fmt.Errorf("mark message %s %s: %w", messageID, target, res.Error)
	}

	updated, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return updated, res.RowsAffected == 1, nil
}

// UnreadCount counts messages addressed to userID in active matches that are not read yet.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN matches ON matches.id = messages.match_id").
		Where("matches.is_active = ? AND (matches.investor_id = ? OR matches.founder_id = ?)", true, userID, userID).
		Where("messages.sender_id <> ? AND messages.status IN ?", userID,
			statusStrings([]models.MessageStatus{models.StatusSent, models.StatusDelivered})).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", userID, err)
	}
	return n, nil
}

func (s *Service) getMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := s.DB.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error; err != nil {
		return nil, notFound(err, "message", messageID)
	}
	return &msg, nil
}

func stampFor(target models.MessageStatus, at time.Time) map[string]interface{} {
	updates := map[string]interface{}{"status": string(target)}
	switch target {
	case models.StatusDelivered:
		updates["delivered_at"] = at
	case models.StatusRead:
		updates["read_at"] = at
	}
	return updates
}
