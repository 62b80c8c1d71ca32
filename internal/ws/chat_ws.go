package ws

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"discord-chat/internal/middleware"
	"discord-chat/internal/models"
	"discord-chat/internal/observability"
	"discord-chat/internal/repositories"
)

// ChatWebSocketHandler subscribes members to the live events of a chat.
type ChatWebSocketHandler struct {
	hub    *Hub
	chats  repositories.ChatRepository
	tokens middleware.TokenValidator
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chats repositories.ChatRepository, tokens middleware.TokenValidator) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, chats: chats, tokens: tokens}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle serves GET /ws/chats/:kind/:id. Authentication and membership are
// checked before the upgrade so that rejected clients see a plain HTTP
// status.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chat, ok := chatFromParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat"})
		return
	}

	ctx, span := otel.Tracer("discord-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	profileID, err := h.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.chats.ChatMember(ctx, chat, profileID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repositories.ErrNotMember), errors.Is(err, repositories.ErrMemberNotFound):
			status = http.StatusForbidden
		case errors.Is(err, repositories.ErrChannelNotFound), errors.Is(err, repositories.ErrConversationNotFound):
			status = http.StatusNotFound
		default:
			log.ErrorContext(ctx, "ws membership lookup failed", "chat", chat.String(), "err", err)
		}
		c.JSON(status, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WarnContext(ctx, "ws upgrade failed", "err", err)
		return
	}

	info := newConnInfo(c.Request, profileID, member.ID, span.SpanContext().TraceID().String())
	client := newClient(chat, info)
	h.hub.Add(client)

	kind := string(chat.Kind)
	observability.IncWSActive(kind)
	observability.PublishWSEvent(ctx, h.event(chat, info, "ws_connect", ""))
	log.InfoContext(ctx, "ws connected", "chat", chat.String(), "conn_id", info.ConnID, "member_id", member.ID)

	// The connection outlives the request, so the lifecycle events get a
	// detached context that keeps the trace.
	go h.serve(context.WithoutCancel(ctx), client, conn)
}

func (h *ChatWebSocketHandler) serve(ctx context.Context, client *Client, conn *websocket.Conn) {
	var g errgroup.Group
	g.Go(func() error {
		defer conn.Close()
		return client.writePump(conn)
	})
	g.Go(func() error {
		// Unblocks writePump once the peer is gone.
		defer h.hub.Remove(client)
		return client.readPump(conn)
	})
	err := g.Wait()

	kind := string(client.chat.Kind)
	reason := ""
	if err != nil {
		reason = err.Error()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			observability.PublishWSEvent(ctx, h.event(client.chat, client.info, "ws_error", reason))
		}
	}
	observability.DecWSActive(kind)
	observability.PublishWSEvent(ctx, h.event(client.chat, client.info, "ws_disconnect", reason))
	log.InfoContext(ctx, "ws disconnected", "chat", client.chat.String(), "conn_id", client.info.ConnID, "reason", reason)
}

func (h *ChatWebSocketHandler) event(chat models.ChatRef, info ConnInfo, name, reason string) observability.WSEvent {
	return observability.WSEvent{
		Kind:        string(chat.Kind),
		Chat:        chat.String(),
		Event:       name,
		ConnID:      info.ConnID,
		Reason:      reason,
		ProfileID:   info.ProfileID,
		DeviceID:    info.DeviceID,
		IP:          info.IP,
		ConnectedAt: info.ConnectedAt,
	}
}

func chatFromParams(c *gin.Context) (models.ChatRef, bool) {
	kind := models.ChatKind(c.Param("kind"))
	if kind != models.ChatKindChannel && kind != models.ChatKindConversation {
		return models.ChatRef{}, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return models.ChatRef{}, false
	}
	return models.ChatRef{Kind: kind, ID: id}, true
}
