package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"discord-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository stores the messages of one kind of chat. scopeID is the
// channel id or the conversation id.
type MessageRepository interface {
	ListPage(ctx context.Context, scopeID int64, beforeID int64, limit int) ([]models.Message, error)
	Create(ctx context.Context, scopeID int64, memberID int64, content, fileURL *string) (models.Message, error)
	Get(ctx context.Context, scopeID int64, messageID int64) (models.Message, error)
	UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int64) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository over either messages table.
type MessageRepo struct {
	db    *sqlx.DB
	table string
	scope string
}

// NewChannelMessageRepo stores channel messages.
func NewChannelMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, table: "messages", scope: "channel_id"}
}

// NewDirectMessageRepo stores direct messages of conversations.
func NewDirectMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, table: "direct_messages", scope: "conversation_id"}
}

func (r *MessageRepo) columns() string {
	return fmt.Sprintf("id, content, file_url, member_id, %s AS chat_id, deleted, created_at, updated_at", r.scope)
}

// ListPage returns up to limit messages older than beforeID, newest first.
// A zero beforeID starts from the newest message.
func (r *MessageRepo) ListPage(ctx context.Context, scopeID int64, beforeID int64, limit int) ([]models.Message, error) {
	var (
		msgs []models.Message
		err  error
	)
	if beforeID > 0 {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s=$1 AND id < $2 ORDER BY id DESC LIMIT $3`, r.columns(), r.table, r.scope)
		err = r.db.SelectContext(ctx, &msgs, query, scopeID, beforeID, limit)
	} else {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s=$1 ORDER BY id DESC LIMIT $2`, r.columns(), r.table, r.scope)
		err = r.db.SelectContext(ctx, &msgs, query, scopeID, limit)
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Create stores a message; updated_at starts equal to created_at.
func (r *MessageRepo) Create(ctx context.Context, scopeID int64, memberID int64, content, fileURL *string) (models.Message, error) {
	var msg models.Message
	query := fmt.Sprintf(`INSERT INTO %s (content, file_url, member_id, %s, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING %s`, r.table, r.scope, r.columns())
	err := r.db.QueryRowxContext(ctx, query, content, fileURL, memberID, scopeID).StructScan(&msg)
	return msg, err
}

// Get retrieves a message of the given chat.
func (r *MessageRepo) Get(ctx context.Context, scopeID int64, messageID int64) (models.Message, error) {
	var msg models.Message
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1 AND %s=$2`, r.columns(), r.table, r.scope)
	err := r.db.GetContext(ctx, &msg, query, messageID, scopeID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateContent edits a message that is not deleted.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	var msg models.Message
	query := fmt.Sprintf(`UPDATE %s SET content=$1, updated_at=NOW() WHERE id=$2 AND deleted=FALSE RETURNING %s`, r.table, r.columns())
	err := r.db.QueryRowxContext(ctx, query, content, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete replaces the body with the deletion notice and drops the
// attachment. The row is kept.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	query := fmt.Sprintf(`UPDATE %s SET deleted=TRUE, content=$1, file_url=NULL, updated_at=NOW() WHERE id=$2 RETURNING %s`, r.table, r.columns())
	err := r.db.QueryRowxContext(ctx, query, models.DeletedMessageText, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
