package handlers

import (
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"discord-chat/internal/repositories"
)

var (
	errInvalidCursor = errors.New("invalid cursor")
	errForbidden     = errors.New("not allowed")
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{repositories.ErrServerNotFound, http.StatusNotFound},
	{repositories.ErrChannelNotFound, http.StatusNotFound},
	{repositories.ErrConversationNotFound, http.StatusNotFound},
	{repositories.ErrMessageNotFound, http.StatusNotFound},
	{repositories.ErrMemberNotFound, http.StatusNotFound},
	{repositories.ErrNotMember, http.StatusForbidden},
	{errForbidden, http.StatusForbidden},
	{errInvalidCursor, http.StatusBadRequest},
}

// writeError maps known errors to their status and hides the rest behind a 500.
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
