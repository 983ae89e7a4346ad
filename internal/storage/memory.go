package storage

import (
	"context"
	"fmt"
	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/models"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore is a process-local Storage. It backs single-process deployments
// without DATABASE_DSN and the session tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	matches       map[string]models.Match
	messages      map[string]*models.Message
	byMatch       map[string][]string // message ids in creation order
	notifications []models.Notification
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		matches:  make(map[string]models.Match),
		messages: make(map[string]*models.Message),
		byMatch:  make(map[string][]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateMessage(_ context.Context, matchID, senderID, content string) (*models.Message, error) {
	text, err := NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[matchID]
	if !ok || !match.IsActive {
		return nil, fmt.Errorf("%w: active match %s", apperr.ErrNotFound, matchID)
	}
	if !match.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: %s is not part of match %s", apperr.ErrNotFound, senderID, matchID)
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   text,
		Status:    models.StatusSent,
		CreatedAt: s.now(),
	}
	s.messages[msg.ID] = msg
	s.byMatch[matchID] = append(s.byMatch[matchID], msg.ID)

	out := *msg
	return &out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, matchID, beforeID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMatch[matchID]
	end := len(ids)
	if beforeID != "" {
		idx := lo.IndexOf(ids, beforeID)
		if idx < 0 {
			return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, beforeID)
		}
		end = idx
	}
	start := end - clampLimit(limit)
	if start < 0 {
		start = 0
	}

	page := make([]models.Message, 0, end-start)
	for _, id := range ids[start:end] {
		page = append(page, *s.messages[id])
	}
	return page, nil
}

func (s *MemoryStore) AdvanceToDelivered(_ context.Context, matchID, excludeSender string) ([]string, error) {
	return s.advance(matchID, excludeSender, models.StatusDelivered), nil
}

func (s *MemoryStore) AdvanceToRead(_ context.Context, matchID, excludeSender string) ([]string, error) {
	return s.advance(matchID, excludeSender, models.StatusRead), nil
}

func (s *MemoryStore) advance(matchID, excludeSender string, target models.MessageStatus) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changed := []string{}
	for _, id := range s.byMatch[matchID] {
		msg := s.messages[id]
		if msg.SenderID == excludeSender {
			continue
		}
		if msg.Advance(target, now) {
			changed = append(changed, id)
		}
	}
	return changed
}

func (s *MemoryStore) MarkOneDelivered(_ context.Context, messageID, actor string) (*models.Message, bool, error) {
	return s.markOne(messageID, actor, models.StatusDelivered)
}

func (s *MemoryStore) MarkOneRead(_ context.Context, messageID, actor string) (*models.Message, bool, error) {
	return s.markOne(messageID, actor, models.StatusRead)
}

func (s *MemoryStore) markOne(messageID, actor string, target models.MessageStatus) (*models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return nil, false, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}
	match := s.matches[msg.MatchID]
	if !match.HasParticipant(actor) {
		return nil, false, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}

	changed := msg.SenderID != actor && msg.Advance(target, s.now())
	out := *msg
	return &out, changed, nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for matchID, ids := range s.byMatch {
		match := s.matches[matchID]
		if !match.IsActive || !match.HasParticipant(userID) {
			continue
		}
		for _, id := range ids {
			msg := s.messages[id]
			if msg.SenderID != userID && msg.Status != models.StatusRead {
				n++
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) GetMatch(_ context.Context, matchID string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: match %s", apperr.ErrNotFound, matchID)
	}
	return &match, nil
}

func (s *MemoryStore) GetActiveMatch(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsActive {
		return nil, fmt.Errorf("%w: active match %s", apperr.ErrNotFound, matchID)
	}
	return match, nil
}

func (s *MemoryStore) GetActiveMatchesForUser(_ context.Context, userID string) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Filter(lo.Values(s.matches), func(m models.Match, _ int) bool {
		return m.IsActive && m.HasParticipant(userID)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveMatch(_ context.Context, match *models.Match) error {
	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	now := s.now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.matches {
		if existing.ID != match.ID && existing.InvestorID == match.InvestorID && existing.FounderID == match.FounderID {
			return fmt.Errorf("match between %s and %s already exists", match.InvestorID, match.FounderID)
		}
	}
	s.matches[match.ID] = *match
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByTelegramChatID(_ context.Context, chatID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.TelegramChatID != nil && *user.TelegramChatID == chatID {
			found := user
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: user with telegram chat %d", apperr.ErrNotFound, chatID)
}

func (s *MemoryStore) SaveUser(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) SaveNotification(_ context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Notification{}
	for i := len(s.notifications) - 1; i >= 0 && len(out) < clampLimit(limit); i-- {
		if s.notifications[i].RecipientID == recipientID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) UnreadNotifications(_ context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(lo.CountBy(s.notifications, func(n models.Notification) bool {
		return n.RecipientID == recipientID && !n.IsRead
	})), nil
}

func (s *MemoryStore) MarkNotificationsRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.notifications {
		if s.notifications[i].RecipientID == recipientID && !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}
