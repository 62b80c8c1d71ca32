package handlers

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"discord-chat/internal/middleware"
	"discord-chat/internal/telemetry"
)

// Auditor records user actions. telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Record(ctx context.Context, entry telemetry.AuditEntry)
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func audit(c *gin.Context, a Auditor, action, chat string, target int64, format string, args ...any) {
	if a == nil {
		return
	}
	a.Record(c.Request.Context(), telemetry.AuditEntry{
		Action:    action,
		Chat:      chat,
		TargetID:  target,
		Text:      fmt.Sprintf(format, args...),
		RequestID: requestIDFromContext(c),
		ProfileID: c.GetString(middleware.ProfileIDKey),
	})
}
