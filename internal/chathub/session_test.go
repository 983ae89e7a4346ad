package chathub_test

import (
	"context"
	"encoding/json"
	"errors"
	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/chathub"
	"pitchmatch/backend/internal/event"
	"pitchmatch/backend/internal/models"
	"pitchmatch/backend/internal/presence"
	"pitchmatch/backend/internal/storage"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	store    *storage.MemoryStore
	registry *presence.MemoryRegistry
	hub      *chathub.ManagerService
	deps     chathub.Deps
	founder  string // X
	investor string // Y
	match    *models.Match
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	e := &testEnv{
		store:    storage.NewMemoryStore(),
		registry: presence.NewMemoryRegistry(),
		hub:      chathub.NewManagerService(zap.NewNop()),
		founder:  uuid.New().String(),
		investor: uuid.New().String(),
	}
	e.deps = chathub.Deps{
		Messages: e.store,
		Matches:  e.store,
		Presence: e.registry,
		Hub:      e.hub,
		Log:      zap.NewNop(),
	}

	e.match = &models.Match{InvestorID: e.investor, FounderID: e.founder, IsActive: true}
	require.NoError(t, e.store.SaveMatch(ctx, e.match))
	return e
}

func (e *testEnv) openChat(t *testing.T, userID string) (*chathub.ChatSession, *MockClient) {
	t.Helper()
	sess, err := chathub.NewChatSession(context.Background(), e.deps, userID, e.match.ID)
	require.NoError(t, err)
	client := newMockClient(userID)
	require.NoError(t, sess.Start(context.Background(), client))
	return sess, client
}

func (e *testEnv) openPresence(t *testing.T, userID string) (*chathub.PresenceSession, *MockClient) {
	t.Helper()
	sess, err := chathub.NewPresenceSession(e.deps, userID)
	require.NoError(t, err)
	client := newMockClient(userID)
	require.NoError(t, sess.Start(context.Background(), client))
	return sess, client
}

// observe joins a bare listener to room so tests can see exactly what was published there.
func (e *testEnv) observe(room string) *MockClient {
	c := newMockClient("observer")
	e.hub.Join(room, c)
	return c
}

func frame(t *testing.T, v map[string]interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func (e *testEnv) messages(t *testing.T) []models.Message {
	t.Helper()
	page, err := e.store.ListMessages(context.Background(), e.match.ID, "", 0)
	require.NoError(t, err)
	return page
}

func TestChatSession_Authorization(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := chathub.NewChatSession(ctx, e.deps, "", e.match.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = chathub.NewChatSession(ctx, e.deps, uuid.New().String(), e.match.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = chathub.NewChatSession(ctx, e.deps, e.founder, uuid.New().String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	e.match.IsActive = false
	require.NoError(t, e.store.SaveMatch(ctx, e.match))
	_, err = chathub.NewChatSession(ctx, e.deps, e.founder, e.match.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "inactive matches cannot be chatted in")

	_, err = chathub.NewPresenceSession(e.deps, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestChatSession_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	sess, err := chathub.NewChatSession(ctx, e.deps, e.founder, e.match.ID)
	require.NoError(t, err)
	assert.Equal(t, chathub.StateAuthorized, sess.State())

	client := newMockClient(e.founder)
	require.NoError(t, sess.Start(ctx, client))
	assert.Equal(t, chathub.StateActive, sess.State())
	assert.Equal(t, 1, e.hub.Members(chathub.ChatRoom(e.match.ID)))
	assert.Error(t, sess.Start(ctx, client), "a session starts once")

	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "heartbeat"})))
	require.NoError(t, sess.Handle(ctx, []byte("not json")))
	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "dance"})))
	assert.Len(t, client.OfType(event.TypeHeartbeatAck), 1)
	assert.Len(t, client.Events(), 1, "malformed and unknown frames are dropped silently")

	sess.Close(ctx)
	sess.Close(ctx)
	assert.Equal(t, chathub.StateClosed, sess.State())
	assert.Zero(t, e.hub.Members(chathub.ChatRoom(e.match.ID)))
	assert.True(t, client.IsClosed())

	online, err := e.registry.IsOnline(ctx, e.founder)
	require.NoError(t, err)
	assert.False(t, online, "chat sessions never touch presence")
}

// TestScenarioA: X sends while Y is offline.
func TestScenarioA_RecipientOffline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	matchPresence := e.observe(chathub.MatchPresenceRoom(e.match.ID))

	sess, x := e.openChat(t, e.founder)
	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "hello"})))

	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Nil(t, msgs[0].DeliveredAt)

	chat := x.OfType(event.TypeChatMessage)
	require.Len(t, chat, 1)
	assert.Equal(t, "sent", chat[0].Message.Status)
	assert.Equal(t, "hello", chat[0].Message.Content)

	assert.Empty(t, x.OfType(event.TypeDeliveryUpdate))
	assert.Empty(t, matchPresence.OfType(event.TypeDeliveryUpdate))
	newMsg := matchPresence.OfType(event.TypeNewMessage)
	require.Len(t, newMsg, 1)
	assert.Equal(t, msgs[0].ID, newMsg[0].Message.ID)
}

// TestScenarioBC: Y is online at send time, then opens the chat and reads everything.
func TestScenarioBC_RecipientOnlineThenReads(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	matchPresence := e.observe(chathub.MatchPresenceRoom(e.match.ID))

	_, yPresence := e.openPresence(t, e.investor)
	xChat, x := e.openChat(t, e.founder)

	require.NoError(t, xChat.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "hello"})))

	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusDelivered, msgs[0].Status)
	require.NotNil(t, msgs[0].DeliveredAt)

	chat := x.OfType(event.TypeChatMessage)
	require.Len(t, chat, 1)
	assert.Equal(t, "delivered", chat[0].Message.Status)
	assert.NotEmpty(t, chat[0].Message.DeliveredAt)

	deliveries := matchPresence.OfType(event.TypeDeliveryUpdate)
	require.Len(t, deliveries, 1)
	assert.Equal(t, msgs[0].ID, deliveries[0].MessageID)
	assert.Equal(t, "delivered", deliveries[0].Status)
	assert.Len(t, yPresence.OfType(event.TypeNewMessage), 1, "badge consumers learn about the message")

	// Scenario C
	x.Reset()
	yChat, y := e.openChat(t, e.investor)
	assert.Empty(t, x.OfType(event.TypeDeliveryUpdate), "nothing left to deliver")
	assert.Empty(t, y.OfType(event.TypeDeliveryUpdate))

	require.NoError(t, yChat.Handle(ctx, frame(t, map[string]interface{}{"type": "mark_all_read"})))

	reads := x.OfType(event.TypeDeliveryUpdate)
	require.Len(t, reads, 1)
	assert.Equal(t, "read", reads[0].Status)
	assert.Equal(t, msgs[0].ID, reads[0].MessageID)
	assert.Equal(t, models.StatusRead, e.messages(t)[0].Status)

	require.NoError(t, yChat.Handle(ctx, frame(t, map[string]interface{}{"type": "mark_all_read"})))
	assert.Len(t, x.OfType(event.TypeDeliveryUpdate), 1, "a second mark_all_read changes nothing")
}

// TestScenarioD: oversized content creates nothing and publishes nothing.
func TestScenarioD_OversizedContent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	chatRoom := e.observe(chathub.ChatRoom(e.match.ID))
	matchPresence := e.observe(chathub.MatchPresenceRoom(e.match.ID))

	sess, x := e.openChat(t, e.founder)
	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{
		"type":    "chat_message",
		"content": strings.Repeat("x", 5001),
	})))
	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "   "})))

	assert.Empty(t, e.messages(t))
	assert.Empty(t, chatRoom.Events())
	assert.Empty(t, matchPresence.Events())

	errs := x.OfType(event.TypeError)
	require.Len(t, errs, 2, "the sender alone is told why")
	assert.Equal(t, "validation", errs[0].Error)
	assert.Equal(t, chathub.StateActive, sess.State(), "the connection stays open")
}

// TestScenarioE: REST mark-delivered races a chat connect on one pending message.
func TestScenarioE_DeliveryRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		e := newTestEnv(t)
		ctx := context.Background()

		pending, err := e.store.CreateMessage(ctx, e.match.ID, e.founder, "ping")
		require.NoError(t, err)
		chatRoom := e.observe(chathub.ChatRoom(e.match.ID))

		var (
			wg      sync.WaitGroup
			restIDs []string
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.openChat(t, e.investor)
		}()
		go func() {
			defer wg.Done()
			ids, err := e.store.AdvanceToDelivered(ctx, e.match.ID, e.investor)
			assert.NoError(t, err)
			restIDs = ids
		}()
		wg.Wait()

		socketUpdates := chatRoom.OfType(event.TypeDeliveryUpdate)
		assert.Equal(t, 1, len(restIDs)+len(socketUpdates), "exactly one transition lands")

		msgs := e.messages(t)
		require.Len(t, msgs, 1)
		assert.Equal(t, pending.ID, msgs[0].ID)
		assert.Equal(t, models.StatusDelivered, msgs[0].Status)
		assert.NotNil(t, msgs[0].DeliveredAt)
	}
}

func TestChatSession_ConnectDeliversPending(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	own, err := e.store.CreateMessage(ctx, e.match.ID, e.investor, "mine")
	require.NoError(t, err)
	theirs, err := e.store.CreateMessage(ctx, e.match.ID, e.founder, "theirs")
	require.NoError(t, err)

	_, y := e.openChat(t, e.investor)

	updates := y.OfType(event.TypeDeliveryUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, theirs.ID, updates[0].MessageID)

	for _, m := range e.messages(t) {
		if m.ID == own.ID {
			assert.Equal(t, models.StatusSent, m.Status, "own messages are never advanced by their sender")
		}
	}
}

func TestChatSession_ReadAckAndTyping(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	xChat, x := e.openChat(t, e.founder)
	yChat, y := e.openChat(t, e.investor)

	require.NoError(t, xChat.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "hi"})))
	msgID := x.OfType(event.TypeChatMessage)[0].Message.ID

	require.NoError(t, xChat.Handle(ctx, frame(t, map[string]interface{}{"type": "message_read", "message_id": msgID})))
	assert.Empty(t, x.OfType(event.TypeDeliveryUpdate), "senders cannot read their own message")

	require.NoError(t, yChat.Handle(ctx, frame(t, map[string]interface{}{"type": "message_read", "message_id": msgID})))
	require.NoError(t, yChat.Handle(ctx, frame(t, map[string]interface{}{"type": "message_read", "message_id": msgID})))
	reads := x.OfType(event.TypeDeliveryUpdate)
	require.Len(t, reads, 1)
	assert.Equal(t, "read", reads[0].Status)

	require.NoError(t, yChat.Handle(ctx, frame(t, map[string]interface{}{"type": "message_read", "message_id": uuid.New().String()})))
	errs := y.OfType(event.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "not_found", errs[0].Error)

	require.NoError(t, xChat.Handle(ctx, frame(t, map[string]interface{}{"type": "typing", "is_typing": true})))
	typing := y.OfType(event.TypeTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, e.founder, typing[0].UserID)
	assert.True(t, *typing[0].IsTyping)
	assert.Empty(t, x.OfType(event.TypeTyping), "typing is not echoed to the typist")
}

func TestPresenceSession_StartAndClose(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	pending, err := e.store.CreateMessage(ctx, e.match.ID, e.founder, "while you were away")
	require.NoError(t, err)
	chatRoom := e.observe(chathub.ChatRoom(e.match.ID))

	xSess, x := e.openPresence(t, e.founder)
	initial := x.OfType(event.TypeInitialStatuses)
	require.Len(t, initial, 1)
	assert.Equal(t, map[string]bool{e.investor: false}, initial[0].Statuses)

	ySess, y := e.openPresence(t, e.investor)

	online, err := e.registry.IsOnline(ctx, e.investor)
	require.NoError(t, err)
	assert.True(t, online)

	initial = y.OfType(event.TypeInitialStatuses)
	require.Len(t, initial, 1)
	assert.Equal(t, map[string]bool{e.founder: true}, initial[0].Statuses)

	statuses := x.OfType(event.TypeStatusUpdate)
	require.Len(t, statuses, 1)
	assert.Equal(t, e.investor, statuses[0].UserID)
	assert.True(t, *statuses[0].Online)
	assert.Empty(t, y.OfType(event.TypeStatusUpdate), "own status is not echoed")

	deliveredInChat := chatRoom.OfType(event.TypeDeliveryUpdate)
	require.Len(t, deliveredInChat, 1)
	assert.Equal(t, pending.ID, deliveredInChat[0].MessageID)
	deliveredToX := x.OfType(event.TypeDeliveryUpdate)
	require.Len(t, deliveredToX, 1, "the sender's badge sees the delivery too")

	assert.Equal(t, 2, e.hub.Members(chathub.MatchPresenceRoom(e.match.ID)))
	assert.Equal(t, 1, e.hub.Members(chathub.UserRoom(e.investor)))

	ySess.Close(ctx)
	ySess.Close(ctx)

	online, err = e.registry.IsOnline(ctx, e.investor)
	require.NoError(t, err)
	assert.False(t, online)
	assert.Equal(t, 1, e.hub.Members(chathub.MatchPresenceRoom(e.match.ID)))
	assert.Zero(t, e.hub.Members(chathub.UserRoom(e.investor)))

	statuses = x.OfType(event.TypeStatusUpdate)
	require.Len(t, statuses, 2, "offline is announced exactly once")
	assert.False(t, *statuses[1].Online)

	xSess.Close(ctx)
	assert.Zero(t, e.hub.Members(chathub.MatchPresenceRoom(e.match.ID)))
}

func TestPresenceSession_TypingAndNewMessageFilter(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	xSess, x := e.openPresence(t, e.founder)
	_, y := e.openPresence(t, e.investor)
	xChat, _ := e.openChat(t, e.founder)

	require.NoError(t, xSess.Handle(ctx, frame(t, map[string]interface{}{
		"type": "typing", "match_id": e.match.ID, "is_typing": true,
	})))
	require.NoError(t, xSess.Handle(ctx, frame(t, map[string]interface{}{
		"type": "typing", "match_id": uuid.New().String(), "is_typing": true,
	})))
	typing := y.OfType(event.TypeTyping)
	require.Len(t, typing, 1, "typing for matches the session did not join is dropped")
	assert.Equal(t, e.match.ID, typing[0].MatchID)
	assert.Empty(t, x.OfType(event.TypeTyping))

	require.NoError(t, xChat.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "ping"})))
	assert.Len(t, y.OfType(event.TypeNewMessage), 1)
	assert.Empty(t, x.OfType(event.TypeNewMessage), "senders get no badge for their own message")

	require.NoError(t, xSess.Handle(ctx, frame(t, map[string]interface{}{"type": "heartbeat"})))
	assert.Len(t, x.OfType(event.TypeHeartbeatAck), 1)
}

// TestPresenceSession_AbnormalDisconnect closes with an already cancelled
// request context, as a dropped network connection does.
func TestPresenceSession_AbnormalDisconnect(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	sess, err := chathub.NewPresenceSession(e.deps, e.investor)
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx, newMockClient(e.investor)))
	_, x := e.openPresence(t, e.founder)

	cancel()
	sess.Close(ctx)

	online, err := e.registry.IsOnline(context.Background(), e.investor)
	require.NoError(t, err)
	assert.False(t, online)
	assert.Equal(t, 1, e.hub.Members(chathub.MatchPresenceRoom(e.match.ID)))

	statuses := x.OfType(event.TypeStatusUpdate)
	require.NotEmpty(t, statuses)
	assert.False(t, *statuses[len(statuses)-1].Online)
}

func TestChatSession_PanicStillCleansUp(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	store := new(MockMessageStore)
	store.On("AdvanceToDelivered", mock.Anything, e.match.ID, e.founder).Return([]string{}, nil)
	store.On("CreateMessage", mock.Anything, e.match.ID, e.founder, "boom").Run(func(mock.Arguments) {
		panic("driver exploded")
	})
	e.deps.Messages = store

	sess, x := e.openChat(t, e.founder)
	err := sess.Handle(ctx, frame(t, map[string]interface{}{"type": "chat_message", "content": "boom"}))
	require.Error(t, err, "the panic ends the read loop")

	sess.Close(ctx)
	assert.Zero(t, e.hub.Members(chathub.ChatRoom(e.match.ID)))
	assert.True(t, x.IsClosed())
}

func TestChatSession_RetriesTransientFailuresOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	transient := errors.New("connection reset")

	store := new(MockMessageStore)
	store.On("AdvanceToDelivered", mock.Anything, e.match.ID, e.investor).Return(nil, transient).Once()
	store.On("AdvanceToDelivered", mock.Anything, e.match.ID, e.investor).Return([]string{"m1"}, nil).Once()
	store.On("AdvanceToRead", mock.Anything, e.match.ID, e.investor).Return(nil, transient).Twice()
	store.On("MarkOneRead", mock.Anything, "missing", e.investor).Return(nil, false, apperr.ErrNotFound).Once()
	e.deps.Messages = store

	sess, y := e.openChat(t, e.investor)
	assert.Len(t, y.OfType(event.TypeDeliveryUpdate), 1, "the retry succeeded")

	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "mark_all_read"})))
	assert.Equal(t, chathub.StateActive, sess.State(), "a degraded operation keeps the connection")

	require.NoError(t, sess.Handle(ctx, frame(t, map[string]interface{}{"type": "message_read", "message_id": "missing"})))

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "MarkOneRead", 1)
}
