package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"discord-chat/internal/middleware"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, auditor Auditor, tokens *middleware.TokenManager, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if auditor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		audit(c, auditor, "debug.audit_test", "", 0, "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Issues a token for any profile so local clients can reach the API
	// without the identity service.
	router.POST("/debug/token", func(c *gin.Context) {
		var req struct {
			ProfileID string `json:"profileId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "profileId missing")
			return
		}
		token, err := tokens.IssueToken(req.ProfileID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}
