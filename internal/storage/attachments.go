package storage

import (
	"context"
	"fmt"
	log "log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"discord-chat/internal/config"
)

// Attachments signs uploads of message attachments into one bucket.
type Attachments struct {
	client    *minio.Client
	bucket    string
	publicURL string
	ttl       time.Duration
}

// NewAttachments connects to MinIO and creates the bucket when missing.
func NewAttachments(ctx context.Context, cfg config.MinIOConfig) (*Attachments, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("attachment bucket created", "bucket", cfg.Bucket)
	}

	return newAttachments(client, cfg), nil
}

func newAttachments(client *minio.Client, cfg config.MinIOConfig) *Attachments {
	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Attachments{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		ttl:       ttl,
	}
}

// PresignUpload returns a presigned PUT URL for objectKey and the public URL
// the object will be served from.
func (a *Attachments) PresignUpload(ctx context.Context, objectKey, contentType string) (string, string, error) {
	u, err := a.client.PresignedPutObject(ctx, a.bucket, objectKey, a.ttl)
	if err != nil {
		return "", "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	log.DebugContext(ctx, "attachment upload presigned", "key", objectKey, "content_type", contentType)
	return u.String(), a.PublicURL(objectKey), nil
}

// PublicURL is where objectKey is served from once uploaded.
func (a *Attachments) PublicURL(objectKey string) string {
	return a.publicURL + "/" + a.bucket + "/" + url.PathEscape(objectKey)
}
