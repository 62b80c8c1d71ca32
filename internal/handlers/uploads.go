package handlers

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachmentSigner hands out presigned upload URLs. The returned fileURL is
// what clients put in a message's fileUrl once the upload succeeds.
type AttachmentSigner interface {
	PresignUpload(ctx context.Context, objectKey, contentType string) (uploadURL, fileURL string, err error)
}

type UploadHandler struct {
	signer AttachmentSigner
}

func NewUploadHandler(signer AttachmentSigner) *UploadHandler {
	return &UploadHandler{signer: signer}
}

func (h *UploadHandler) Register(api gin.IRoutes) {
	api.POST("/uploads", h.Presign)
}

// Presign accepts images and PDFs only.
func (h *UploadHandler) Presign(c *gin.Context) {
	var req struct {
		FileName    string `json:"fileName" binding:"required"`
		ContentType string `json:"contentType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "fileName and contentType are required")
		return
	}
	if !allowedAttachment(req.ContentType) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only images and pdf files are accepted"})
		return
	}

	key := uuid.NewString() + "-" + sanitizeFileName(req.FileName)
	uploadURL, fileURL, err := h.signer.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploadUrl": uploadURL, "fileUrl": fileURL, "key": key})
}

func allowedAttachment(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
