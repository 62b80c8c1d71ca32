package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat/internal/feed"
	"discord-chat/internal/middleware"
	"discord-chat/internal/mocks"
	"discord-chat/internal/models"
	"discord-chat/internal/repositories"
)

var chat = models.ChatRef{Kind: models.ChatKindChannel, ID: 3}

func event(kind models.EventKind, id int64) models.LiveEvent {
	text := "hello"
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.NewLiveEvent(chat, kind, models.Message{ID: id, ChatID: chat.ID, MemberID: 1, Content: &text, CreatedAt: now, UpdatedAt: now})
}

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()
	c := newClient(chat, ConnInfo{})

	hub.Add(c)
	assert.Equal(t, 1, hub.RoomSize(chat))

	hub.Remove(c)
	assert.Equal(t, 0, hub.RoomSize(chat))
	_, open := <-c.send
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Remove(c) })
}

func TestHubDeliverScopesToRoom(t *testing.T) {
	hub := NewHub()
	here := newClient(chat, ConnInfo{})
	elsewhere := newClient(models.ChatRef{Kind: models.ChatKindConversation, ID: 3}, ConnInfo{})
	hub.Add(here)
	hub.Add(elsewhere)

	require.NoError(t, hub.Broadcast(context.Background(), chat, event(models.EventCreated, 1)))

	assert.Len(t, here.send, 1)
	assert.Len(t, elsewhere.send, 0)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := newClient(chat, ConnInfo{ConnID: "slow"})
	hub.Add(slow)

	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, hub.Deliver(chat, []byte("x")))
	}
	assert.Equal(t, 0, hub.Deliver(chat, []byte("overflow")))
	assert.Equal(t, 0, hub.RoomSize(chat))
}

func TestDeliverSkipsClosedClient(t *testing.T) {
	hub := NewHub()
	gone := newClient(chat, ConnInfo{ConnID: "gone"})
	live := newClient(chat, ConnInfo{ConnID: "live"})
	hub.Add(gone)
	hub.Add(live)

	// Closed between the room snapshot in Deliver and the send.
	gone.closeSend()
	gone.closeSend()

	assert.NotPanics(t, func() {
		assert.Equal(t, 1, hub.Deliver(chat, []byte("x")))
	})
	assert.ErrorIs(t, gone.enqueue([]byte("y")), errClientClosed)
	assert.Len(t, live.send, 1)
}

func TestBroadcastRejectsForeignTopic(t *testing.T) {
	hub := NewHub()
	ev := event(models.EventCreated, 1)
	ev.Topic = models.ChatRef{Kind: models.ChatKindChannel, ID: 99}.AddTopic()

	assert.Error(t, hub.Broadcast(context.Background(), chat, ev))
}

func TestRedisBrokerChannelNames(t *testing.T) {
	b := NewRedisBroker(nil, NewHub(), "feed:")

	assert.Equal(t, "feed:channel-3", b.channel(chat))

	got, err := b.chatOf("feed:conversation-12")
	require.NoError(t, err)
	assert.Equal(t, models.ChatRef{Kind: models.ChatKindConversation, ID: 12}, got)

	_, err = b.chatOf("other:channel-3")
	assert.Error(t, err)
	_, err = b.chatOf("feed:group-3")
	assert.Error(t, err)
}

type wsFixture struct {
	hub    *Hub
	chats  *mocks.ChatRepositoryMock
	tokens *middleware.TokenManager
	server *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &wsFixture{
		hub:    NewHub(),
		chats:  new(mocks.ChatRepositoryMock),
		tokens: middleware.NewTokenManager("secret", "discord-chat", time.Hour),
	}
	r := gin.New()
	r.GET("/ws/chats/:kind/:id", NewChatWebSocketHandler(f.hub, f.chats, f.tokens).Handle)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) url(path string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + path
}

func (f *wsFixture) token(t *testing.T, profileID string) string {
	t.Helper()
	token, err := f.tokens.IssueToken(profileID)
	require.NoError(t, err)
	return token
}

func TestWebSocketDeliversChatEvents(t *testing.T) {
	f := newWSFixture(t)
	f.chats.On("ChatMember", mock.Anything, chat, "p1").Return(models.Member{ID: 1}, nil).Once()

	conn, _, err := websocket.DefaultDialer.Dial(f.url("/ws/chats/channel/3?token="+f.token(t, "p1")), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.RoomSize(chat) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, f.hub.Broadcast(context.Background(), chat, event(models.EventUpdated, 7)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.LiveEvent
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, chat.UpdateTopic(), got.Topic)
	assert.Equal(t, models.EventUpdated, got.Kind)
	assert.Equal(t, int64(7), got.Message.ID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return f.hub.RoomSize(chat) == 0 }, 2*time.Second, 10*time.Millisecond)
	f.chats.AssertExpectations(t)
}

func TestWebSocketRejectsBeforeUpgrade(t *testing.T) {
	f := newWSFixture(t)
	f.chats.On("ChatMember", mock.Anything, chat, "outsider").Return(nil, repositories.ErrNotMember).Once()
	f.chats.On("ChatMember", mock.Anything, models.ChatRef{Kind: models.ChatKindChannel, ID: 4}, "p1").
		Return(nil, repositories.ErrChannelNotFound).Once()

	cases := map[string]struct {
		path   string
		status int
	}{
		"no token":       {"/ws/chats/channel/3", http.StatusUnauthorized},
		"bad token":      {"/ws/chats/channel/3?token=nope", http.StatusUnauthorized},
		"bad kind":       {"/ws/chats/group/3?token=" + f.token(t, "p1"), http.StatusBadRequest},
		"not a member":   {"/ws/chats/channel/3?token=" + f.token(t, "outsider"), http.StatusForbidden},
		"unknown chat":   {"/ws/chats/channel/4?token=" + f.token(t, "p1"), http.StatusNotFound},
		"non numeric id": {"/ws/chats/channel/x?token=" + f.token(t, "p1"), http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(tc.path), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	f.chats.AssertExpectations(t)
}

// The client feed and the server hub agree on the wire format end to end.
func TestFeedLiveChannelAgainstHub(t *testing.T) {
	f := newWSFixture(t)
	f.chats.On("ChatMember", mock.Anything, chat, "p1").Return(models.Member{ID: 1}, nil)

	events := make(chan models.LiveEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	live := feed.Subscribe(ctx, chat, feed.LiveConfig{
		URL:   f.url("/ws/chats"),
		Token: f.token(t, "p1"),
	}, func(ev models.LiveEvent) { events <- ev })
	defer live.Close()

	require.Eventually(t, func() bool { return f.hub.RoomSize(chat) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, f.hub.Broadcast(context.Background(), chat, event(models.EventCreated, 11)))
	require.NoError(t, f.hub.Broadcast(context.Background(), chat, event(models.EventDeleted, 11)))

	for _, want := range []models.EventKind{models.EventCreated, models.EventDeleted} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Kind)
			assert.Equal(t, int64(11), ev.Message.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event received", want)
		}
	}
}
