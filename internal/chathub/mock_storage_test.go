package chathub_test

import (
	"context"
	"pitchmatch/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockMessageStore is a testify mock of storage.MessageStore used to inject
// transient failures and panics into sessions.
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) CreateMessage(ctx context.Context, matchID, senderID, content string) (*models.Message, error) {
	args := m.Called(ctx, matchID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageStore) ListMessages(ctx context.Context, matchID, beforeID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, matchID, beforeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageStore) AdvanceToDelivered(ctx context.Context, matchID, excludeSender string) ([]string, error) {
	args := m.Called(ctx, matchID, excludeSender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageStore) AdvanceToRead(ctx context.Context, matchID, excludeSender string) ([]string, error) {
	args := m.Called(ctx, matchID, excludeSender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageStore) MarkOneDelivered(ctx context.Context, messageID, actor string) (*models.Message, bool, error) {
	args := m.Called(ctx, messageID, actor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Message), args.Bool(1), args.Error(2)
}

func (m *MockMessageStore) MarkOneRead(ctx context.Context, messageID, actor string) (*models.Message, bool, error) {
	args := m.Called(ctx, messageID, actor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Message), args.Bool(1), args.Error(2)
}

func (m *MockMessageStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
