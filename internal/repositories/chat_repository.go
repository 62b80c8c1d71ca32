package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"discord-chat/internal/models"
)

var (
	ErrServerNotFound       = errors.New("server not found")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrNotMember            = errors.New("not a member")
)

// ChatRepository resolves servers, channels, conversations and the member
// acting in them.
type ChatRepository interface {
	CreateServer(ctx context.Context, profileID, name string) (models.Server, models.Member, error)
	JoinServer(ctx context.Context, inviteCode, profileID string) (models.Member, error)
	UpdateServer(ctx context.Context, serverID int64, name, imageURL string) (models.Server, error)
	CreateChannel(ctx context.Context, serverID int64, profileID, name string, kind models.ChannelType) (models.Channel, error)
	ServerMember(ctx context.Context, serverID int64, profileID string) (models.Member, error)
	ChatMember(ctx context.Context, chat models.ChatRef, profileID string) (models.Member, error)
	GetMember(ctx context.Context, memberID int64) (models.Member, error)
	GetOrCreateConversation(ctx context.Context, memberOneID, memberTwoID int64) (models.Conversation, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const memberColumns = `id, role, profile_id, server_id, created_at`

// CreateServer creates a server with its general channel and makes the
// creator its ADMIN.
func (r *ChatRepo) CreateServer(ctx context.Context, profileID, name string) (models.Server, models.Member, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Server{}, models.Member{}, err
	}
	defer tx.Rollback()

	var server models.Server
	if err := tx.QueryRowxContext(ctx, `INSERT INTO servers (name, invite_code, profile_id) VALUES ($1, $2, $3)
        RETURNING id, name, invite_code, profile_id, created_at`, name, uuid.NewString(), profileID).StructScan(&server); err != nil {
		return models.Server{}, models.Member{}, fmt.Errorf("insert server: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO channels (name, type, profile_id, server_id) VALUES ($1, $2, $3, $4)`,
		models.DefaultChannelName, models.ChannelText, profileID, server.ID); err != nil {
		return models.Server{}, models.Member{}, fmt.Errorf("insert general channel: %w", err)
	}
	var member models.Member
	if err := tx.QueryRowxContext(ctx, `INSERT INTO members (role, profile_id, server_id) VALUES ($1, $2, $3)
        RETURNING `+memberColumns, models.RoleAdmin, profileID, server.ID).StructScan(&member); err != nil {
		return models.Server{}, models.Member{}, fmt.Errorf("insert admin member: %w", err)
	}
	return server, member, tx.Commit()
}

// JoinServer adds the profile as a GUEST, or returns its existing membership.
func (r *ChatRepo) JoinServer(ctx context.Context, inviteCode, profileID string) (models.Member, error) {
	var serverID int64
	err := r.db.GetContext(ctx, &serverID, `SELECT id FROM servers WHERE invite_code=$1`, inviteCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrServerNotFound
	}
	if err != nil {
		return models.Member{}, err
	}

	var member models.Member
	err = r.db.QueryRowxContext(ctx, `INSERT INTO members (role, profile_id, server_id) VALUES ($1, $2, $3)
        ON CONFLICT (profile_id, server_id) DO UPDATE SET profile_id = EXCLUDED.profile_id
        RETURNING `+memberColumns, models.RoleGuest, profileID, serverID).StructScan(&member)
	return member, err
}

// UpdateServer renames a server and replaces its image.
func (r *ChatRepo) UpdateServer(ctx context.Context, serverID int64, name, imageURL string) (models.Server, error) {
	var server models.Server
	err := r.db.QueryRowxContext(ctx, `UPDATE servers SET name=$1, image_url=$2 WHERE id=$3
        RETURNING id, name, image_url, invite_code, profile_id, created_at`, name, imageURL, serverID).StructScan(&server)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Server{}, ErrServerNotFound
	}
	if err != nil {
		return models.Server{}, fmt.Errorf("update server: %w", err)
	}
	return server, nil
}

// CreateChannel adds a channel to a server.
func (r *ChatRepo) CreateChannel(ctx context.Context, serverID int64, profileID, name string, kind models.ChannelType) (models.Channel, error) {
	var channel models.Channel
	err := r.db.QueryRowxContext(ctx, `INSERT INTO channels (name, type, profile_id, server_id) VALUES ($1, $2, $3, $4)
        RETURNING id, name, type, profile_id, server_id, created_at`, name, kind, profileID, serverID).StructScan(&channel)
	return channel, err
}

// ServerMember returns the profile's membership in a server.
func (r *ChatRepo) ServerMember(ctx context.Context, serverID int64, profileID string) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM members WHERE server_id=$1 AND profile_id=$2`, serverID, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrNotMember
	}
	return member, err
}

// ChatMember returns the member the profile acts as inside chat.
func (r *ChatRepo) ChatMember(ctx context.Context, chat models.ChatRef, profileID string) (models.Member, error) {
	switch chat.Kind {
	case models.ChatKindChannel:
		return r.channelMember(ctx, chat.ID, profileID)
	case models.ChatKindConversation:
		return r.conversationMember(ctx, chat.ID, profileID)
	}
	return models.Member{}, fmt.Errorf("unknown chat kind %q", chat.Kind)
}

func (r *ChatRepo) channelMember(ctx context.Context, channelID int64, profileID string) (models.Member, error) {
	var serverID int64
	err := r.db.GetContext(ctx, &serverID, `SELECT server_id FROM channels WHERE id=$1`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrChannelNotFound
	}
	if err != nil {
		return models.Member{}, err
	}
	return r.ServerMember(ctx, serverID, profileID)
}

func (r *ChatRepo) conversationMember(ctx context.Context, conversationID int64, profileID string) (models.Member, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, member_one_id, member_two_id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Member{}, err
	}

	var member models.Member
	err = r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM members WHERE id IN ($1, $2) AND profile_id=$3`,
		conv.MemberOneID, conv.MemberTwoID, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrNotMember
	}
	return member, err
}

// GetMember fetches a member by id.
func (r *ChatRepo) GetMember(ctx context.Context, memberID int64) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM members WHERE id=$1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

// GetOrCreateConversation returns the conversation between two members,
// creating it when needed. The pair is unordered.
func (r *ChatRepo) GetOrCreateConversation(ctx context.Context, memberOneID, memberTwoID int64) (models.Conversation, error) {
	if memberOneID == memberTwoID {
		return models.Conversation{}, errors.New("cannot start a conversation with self")
	}
	if memberOneID > memberTwoID {
		memberOneID, memberTwoID = memberTwoID, memberOneID
	}

	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (member_one_id, member_two_id) VALUES ($1, $2)
        ON CONFLICT (member_one_id, member_two_id) DO UPDATE SET member_one_id = EXCLUDED.member_one_id
        RETURNING id, member_one_id, member_two_id, created_at`, memberOneID, memberTwoID).StructScan(&conv)
	return conv, err
}
