package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-chat/internal/models"
)

var messageCols = []string{"id", "content", "file_url", "member_id", "chat_id", "deleted", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestListPageNewest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChannelMessageRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE channel_id=$1 ORDER BY id DESC LIMIT $2`)).
		WithArgs(int64(4), 10).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow(12, "hi", nil, 3, 4, false, now, now).
			AddRow(11, nil, "https://files/x.png", 3, 4, false, now, now))

	msgs, err := repo.ListPage(context.Background(), 4, 0, 10)

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(12), msgs[0].ID)
	assert.Equal(t, int64(4), msgs[0].ChatID)
	assert.Nil(t, msgs[1].Content)
	assert.Equal(t, "https://files/x.png", *msgs[1].FileURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPageBeforeCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDirectMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`conversation_id AS chat_id, deleted, created_at, updated_at FROM direct_messages WHERE conversation_id=$1 AND id < $2 ORDER BY id DESC LIMIT $3`)).
		WithArgs(int64(9), int64(50), 10).
		WillReturnRows(sqlmock.NewRows(messageCols))

	msgs, err := repo.ListPage(context.Background(), 9, 50, 10)

	require.NoError(t, err)
	assert.Empty(t, msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessageNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChannelMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1 AND channel_id=$2`)).
		WithArgs(int64(1), int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 2, 1)

	assert.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChannelMessageRepo(db)
	now := time.Now()
	content := "hello"

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (content, file_url, member_id, channel_id, created_at, updated_at)`)).
		WithArgs(&content, nil, int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(20, "hello", nil, 3, 4, false, now, now))

	msg, err := repo.Create(context.Background(), 4, 3, &content, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(20), msg.ID)
	assert.False(t, msg.IsUpdated())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContentSkipsDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChannelMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE messages SET content=$1, updated_at=NOW() WHERE id=$2 AND deleted=FALSE`)).
		WithArgs("edit", int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateContent(context.Background(), 5, "edit")

	assert.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteKeepsRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDirectMessageRepo(db)
	created := time.Now().Add(-time.Hour)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE direct_messages SET deleted=TRUE, content=$1, file_url=NULL, updated_at=NOW() WHERE id=$2`)).
		WithArgs(models.DeletedMessageText, int64(8)).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(8, models.DeletedMessageText, nil, 3, 6, true, created, now))

	msg, err := repo.SoftDelete(context.Background(), 8)

	require.NoError(t, err)
	assert.True(t, msg.Deleted)
	assert.Nil(t, msg.FileURL)
	assert.Equal(t, int64(6), msg.ChatID)
	assert.True(t, msg.IsUpdated())
	require.NoError(t, mock.ExpectationsWereMet())
}
