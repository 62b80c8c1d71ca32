package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-chat/internal/models"
)

var memberCols = []string{"id", "role", "profile_id", "server_id", "created_at"}

func TestChannelMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT server_id FROM channels WHERE id=$1`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE server_id=$1 AND profile_id=$2`)).
		WithArgs(int64(1), "p1").
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow(7, "MODERATOR", "p1", 1, time.Now()))

	member, err := repo.ChatMember(context.Background(), models.ChatRef{Kind: models.ChatKindChannel, ID: 3}, "p1")

	require.NoError(t, err)
	assert.Equal(t, int64(7), member.ID)
	assert.True(t, member.Role.CanModerate())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelMemberUnknownChannel(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT server_id FROM channels WHERE id=$1`)).
		WithArgs(int64(3)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ChatMember(context.Background(), models.ChatRef{Kind: models.ChatKindChannel, ID: 3}, "p1")

	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestConversationMemberRejectsOutsider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE id=$1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_one_id", "member_two_id", "created_at"}).AddRow(5, 1, 2, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE id IN ($1, $2) AND profile_id=$3`)).
		WithArgs(int64(1), int64(2), "intruder").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ChatMember(context.Background(), models.ChatRef{Kind: models.ChatKindConversation, ID: 5}, "intruder")

	assert.ErrorIs(t, err, ErrNotMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateConversationOrdersPair(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversations (member_one_id, member_two_id)`)).
		WithArgs(int64(2), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_one_id", "member_two_id", "created_at"}).AddRow(4, 2, 9, time.Now()))

	conv, err := repo.GetOrCreateConversation(context.Background(), 9, 2)

	require.NoError(t, err)
	assert.Equal(t, int64(4), conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.GetOrCreateConversation(context.Background(), 3, 3)
	assert.Error(t, err)
}

func TestCreateServerAddsGeneralChannelAndAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO servers (name, invite_code, profile_id)`)).
		WithArgs("guild", sqlmock.AnyArg(), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "invite_code", "profile_id", "created_at"}).AddRow(1, "guild", "code", "p1", now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO channels (name, type, profile_id, server_id)`)).
		WithArgs(models.DefaultChannelName, models.ChannelText, "p1", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO members (role, profile_id, server_id)`)).
		WithArgs(models.RoleAdmin, "p1", int64(1)).
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow(1, "ADMIN", "p1", 1, now))
	mock.ExpectCommit()

	server, member, err := repo.CreateServer(context.Background(), "p1", "guild")

	require.NoError(t, err)
	assert.Equal(t, "code", server.InviteCode)
	assert.Equal(t, models.RoleAdmin, member.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinServerUnknownInvite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM servers WHERE invite_code=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.JoinServer(context.Background(), "nope", "p1")

	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestUpdateServer(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	cols := []string{"id", "name", "image_url", "invite_code", "profile_id", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE servers SET name=$1, image_url=$2 WHERE id=$3`)).
		WithArgs("renamed", "https://img/x.png", int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "renamed", "https://img/x.png", "abc", "p1", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE servers SET name=$1, image_url=$2 WHERE id=$3`)).
		WithArgs("renamed", "", int64(2)).
		WillReturnError(sql.ErrNoRows)

	server, err := repo.UpdateServer(context.Background(), 1, "renamed", "https://img/x.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img/x.png", server.ImageURL)

	_, err = repo.UpdateServer(context.Background(), 2, "renamed", "")
	assert.ErrorIs(t, err, ErrServerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
