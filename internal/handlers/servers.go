package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"discord-chat/internal/middleware"
	"discord-chat/internal/models"
	"discord-chat/internal/repositories"
)

// ServerHandler manages servers, invites, channels and the conversations
// between members of a server.
type ServerHandler struct {
	chats   repositories.ChatRepository
	auditor Auditor
}

func NewServerHandler(chats repositories.ChatRepository, auditor Auditor) *ServerHandler {
	return &ServerHandler{chats: chats, auditor: auditor}
}

func (h *ServerHandler) Register(api gin.IRoutes) {
	api.POST("/servers", h.CreateServer)
	api.PATCH("/servers/:serverId", h.UpdateServer)
	api.POST("/servers/invite/:code", h.JoinServer)
	api.POST("/channels", h.CreateChannel)
	api.POST("/conversations", h.StartConversation)
}

// CreateServer creates a server with a general channel owned by the caller.
func (h *ServerHandler) CreateServer(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name missing")
		return
	}

	server, member, err := h.chats.CreateServer(c.Request.Context(), c.GetString(middleware.ProfileIDKey), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(c, err)
		return
	}

	audit(c, h.auditor, "server.created", "", server.ID, "server %d created", server.ID)
	c.JSON(http.StatusCreated, gin.H{"server": server, "member": member})
}

// UpdateServer changes the name and image of a server. Admins only.
func (h *ServerHandler) UpdateServer(c *gin.Context) {
	serverID, err := strconv.ParseInt(c.Param("serverId"), 10, 64)
	if err != nil || serverID <= 0 {
		badRequest(c, "invalid serverId")
		return
	}
	var req struct {
		Name     string `json:"name" binding:"required"`
		ImageURL string `json:"imageUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name and imageUrl are required")
		return
	}

	ctx := c.Request.Context()
	member, err := h.chats.ServerMember(ctx, serverID, c.GetString(middleware.ProfileIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	if member.Role != models.RoleAdmin {
		writeError(c, errForbidden)
		return
	}

	server, err := h.chats.UpdateServer(ctx, serverID, strings.TrimSpace(req.Name), req.ImageURL)
	if err != nil {
		writeError(c, err)
		return
	}

	audit(c, h.auditor, "server.updated", "", server.ID, "server %d updated", server.ID)
	c.JSON(http.StatusOK, server)
}

// JoinServer adds the caller to the server behind an invite code as a guest.
func (h *ServerHandler) JoinServer(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		badRequest(c, "invite code missing")
		return
	}

	member, err := h.chats.JoinServer(c.Request.Context(), code, c.GetString(middleware.ProfileIDKey))
	if err != nil {
		writeError(c, err)
		return
	}

	audit(c, h.auditor, "server.joined", "", member.ServerID, "joined server %d", member.ServerID)
	c.JSON(http.StatusOK, member)
}

// CreateChannel adds a channel to a server. Only admins and moderators may
// create channels, and the default channel name is reserved.
func (h *ServerHandler) CreateChannel(c *gin.Context) {
	serverID, err := strconv.ParseInt(c.Query("serverId"), 10, 64)
	if err != nil || serverID <= 0 {
		badRequest(c, "serverId missing")
		return
	}

	var req struct {
		Name string             `json:"name" binding:"required"`
		Type models.ChannelType `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and type are required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.EqualFold(name, models.DefaultChannelName) {
		badRequest(c, "name cannot be '"+models.DefaultChannelName+"'")
		return
	}
	if !req.Type.Valid() {
		badRequest(c, "invalid channel type")
		return
	}

	profileID := c.GetString(middleware.ProfileIDKey)
	member, err := h.chats.ServerMember(c.Request.Context(), serverID, profileID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member.Role.CanModerate() {
		writeError(c, errForbidden)
		return
	}

	channel, err := h.chats.CreateChannel(c.Request.Context(), serverID, profileID, name, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}

	audit(c, h.auditor, "channel.created", models.ChatRef{Kind: models.ChatKindChannel, ID: channel.ID}.String(), channel.ID, "channel %d created in server %d", channel.ID, serverID)
	c.JSON(http.StatusCreated, channel)
}

// StartConversation returns the direct conversation between the caller and
// another member of the same server, creating it on first use.
func (h *ServerHandler) StartConversation(c *gin.Context) {
	var req struct {
		ServerID int64 `json:"serverId" binding:"required"`
		MemberID int64 `json:"memberId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "serverId and memberId are required")
		return
	}

	ctx := c.Request.Context()
	self, err := h.chats.ServerMember(ctx, req.ServerID, c.GetString(middleware.ProfileIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	if self.ID == req.MemberID {
		badRequest(c, "cannot start a conversation with yourself")
		return
	}

	other, err := h.chats.GetMember(ctx, req.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	if other.ServerID != self.ServerID {
		writeError(c, repositories.ErrMemberNotFound)
		return
	}

	conv, err := h.chats.GetOrCreateConversation(ctx, self.ID, other.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
