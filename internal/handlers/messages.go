package handlers

import (
	"context"
	log "log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"discord-chat/internal/middleware"
	"discord-chat/internal/models"
	"discord-chat/internal/repositories"
)

// DefaultPageSize is the number of messages returned per history page.
const DefaultPageSize = 10

// Broadcaster fans a live event out to every subscriber of a chat.
type Broadcaster interface {
	Broadcast(ctx context.Context, chat models.ChatRef, ev models.LiveEvent) error
}

// MessageHandler serves the history and mutation endpoints of one chat kind.
// Channels and direct conversations share the same rules and differ only in
// their paths and the query parameter naming the chat.
type MessageHandler struct {
	kind        models.ChatKind
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	broadcaster Broadcaster
	auditor     Auditor
	pageSize    int
}

// NewMessageHandler builds a MessageHandler. pageSize <= 0 selects DefaultPageSize.
func NewMessageHandler(kind models.ChatKind, chats repositories.ChatRepository, messages repositories.MessageRepository, broadcaster Broadcaster, auditor Auditor, pageSize int) *MessageHandler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MessageHandler{
		kind:        kind,
		chats:       chats,
		messages:    messages,
		broadcaster: broadcaster,
		auditor:     auditor,
		pageSize:    pageSize,
	}
}

// Register mounts the handler under api, e.g. /api/messages and
// /api/socket/messages for channels.
func (h *MessageHandler) Register(api gin.IRoutes) {
	history, mutations := "/messages", "/socket/messages"
	if h.kind == models.ChatKindConversation {
		history, mutations = "/direct-messages", "/socket/direct-messages"
	}
	api.GET(history, h.List)
	api.POST(mutations, h.Create)
	api.PATCH(mutations+"/:messageId", h.Update)
	api.DELETE(mutations+"/:messageId", h.Delete)
}

func (h *MessageHandler) chatParam() string {
	if h.kind == models.ChatKindConversation {
		return "conversationId"
	}
	return "channelId"
}

// resolve reads the chat from the query string and the caller's member in it.
func (h *MessageHandler) resolve(c *gin.Context) (models.ChatRef, models.Member, bool) {
	param := h.chatParam()
	id, err := strconv.ParseInt(c.Query(param), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, param+" missing")
		return models.ChatRef{}, models.Member{}, false
	}
	chat := models.ChatRef{Kind: h.kind, ID: id}

	member, err := h.chats.ChatMember(c.Request.Context(), chat, c.GetString(middleware.ProfileIDKey))
	if err != nil {
		writeError(c, err)
		return models.ChatRef{}, models.Member{}, false
	}
	return chat, member, true
}

// List returns one page of history, newest first. nextCursor is set only
// when the page is full.
func (h *MessageHandler) List(c *gin.Context) {
	chat, _, ok := h.resolve(c)
	if !ok {
		return
	}

	var before int64
	if raw := c.Query("cursor"); raw != "" {
		id, err := decodeCursor(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		before = id
	}

	msgs, err := h.messages.ListPage(c.Request.Context(), chat.ID, before, h.pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	page := models.MessagePage{Items: msgs}
	if page.Items == nil {
		page.Items = []models.Message{}
	}
	if len(msgs) == h.pageSize {
		next := encodeCursor(msgs[len(msgs)-1].ID)
		page.NextCursor = &next
	}
	c.JSON(http.StatusOK, page)
}

type createMessageRequest struct {
	Content string  `json:"content" binding:"required"`
	FileURL *string `json:"fileUrl"`
}

// Create stores a message and broadcasts it on the chat's add topic.
func (h *MessageHandler) Create(c *gin.Context) {
	chat, member, ok := h.resolve(c)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content missing")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		badRequest(c, "content missing")
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), chat.ID, member.ID, &content, req.FileURL)
	if err != nil {
		writeError(c, err)
		return
	}

	h.broadcast(c, chat, models.EventCreated, msg)
	audit(c, h.auditor, "message.created", chat.String(), msg.ID, "message %d created in %s", msg.ID, chat)
	c.JSON(http.StatusCreated, msg)
}

type updateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Update edits the content of a message. Only its author may edit, and
// deleted messages cannot be edited.
func (h *MessageHandler) Update(c *gin.Context) {
	chat, member, ok := h.resolve(c)
	if !ok {
		return
	}
	msg, ok := h.loadMessage(c, chat)
	if !ok {
		return
	}
	if msg.MemberID != member.ID {
		writeError(c, errForbidden)
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		badRequest(c, "content missing")
		return
	}

	updated, err := h.messages.UpdateContent(c.Request.Context(), msg.ID, strings.TrimSpace(req.Content))
	if err != nil {
		writeError(c, err)
		return
	}

	h.broadcast(c, chat, models.EventUpdated, updated)
	audit(c, h.auditor, "message.edited", chat.String(), msg.ID, "message %d edited in %s", msg.ID, chat)
	c.JSON(http.StatusOK, updated)
}

// Delete soft-deletes a message. Authors and moderating roles may delete.
func (h *MessageHandler) Delete(c *gin.Context) {
	chat, member, ok := h.resolve(c)
	if !ok {
		return
	}
	msg, ok := h.loadMessage(c, chat)
	if !ok {
		return
	}
	if msg.MemberID != member.ID && !member.Role.CanModerate() {
		writeError(c, errForbidden)
		return
	}

	deleted, err := h.messages.SoftDelete(c.Request.Context(), msg.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.broadcast(c, chat, models.EventDeleted, deleted)
	audit(c, h.auditor, "message.deleted", chat.String(), msg.ID, "message %d deleted in %s by member %d", msg.ID, chat, member.ID)
	c.JSON(http.StatusOK, deleted)
}

// loadMessage fetches the addressed message. Deleted messages are reported
// as missing.
func (h *MessageHandler) loadMessage(c *gin.Context, chat models.ChatRef) (models.Message, bool) {
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid message id")
		return models.Message{}, false
	}
	msg, err := h.messages.Get(c.Request.Context(), chat.ID, id)
	if err != nil {
		writeError(c, err)
		return models.Message{}, false
	}
	if msg.Deleted {
		writeError(c, repositories.ErrMessageNotFound)
		return models.Message{}, false
	}
	return msg, true
}

// broadcast never fails the request: the write is already committed.
func (h *MessageHandler) broadcast(c *gin.Context, chat models.ChatRef, kind models.EventKind, msg models.Message) {
	if h.broadcaster == nil {
		return
	}
	ev := models.NewLiveEvent(chat, kind, msg)
	if err := h.broadcaster.Broadcast(c.Request.Context(), chat, ev); err != nil {
		log.WarnContext(c.Request.Context(), "live broadcast failed",
			"chat", chat.String(), "kind", kind, "message_id", msg.ID, "err", err)
	}
}
