package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MemberRole is the role a profile holds inside a server.
type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleGuest     MemberRole = "GUEST"
)

// CanModerate reports whether the role may delete other members' messages.
func (r MemberRole) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Member links a profile to a server.
type Member struct {
	ID        int64      `db:"id" json:"id"`
	Role      MemberRole `db:"role" json:"role"`
	ProfileID string     `db:"profile_id" json:"profileId"`
	ServerID  int64      `db:"server_id" json:"serverId"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Server groups channels and members. Its creator is the first ADMIN.
type Server struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	ImageURL   string    `db:"image_url" json:"imageUrl"`
	InviteCode string    `db:"invite_code" json:"inviteCode"`
	ProfileID  string    `db:"profile_id" json:"profileId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// DefaultChannelName is created with every server and cannot be reused.
const DefaultChannelName = "general"

type ChannelType string

const (
	ChannelText  ChannelType = "TEXT"
	ChannelAudio ChannelType = "AUDIO"
	ChannelVideo ChannelType = "VIDEO"
)

func (t ChannelType) Valid() bool {
	return t == ChannelText || t == ChannelAudio || t == ChannelVideo
}

type Channel struct {
	ID        int64       `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Type      ChannelType `db:"type" json:"type"`
	ProfileID string      `db:"profile_id" json:"profileId"`
	ServerID  int64       `db:"server_id" json:"serverId"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// Conversation is a direct chat between two members of a server.
type Conversation struct {
	ID          int64     `db:"id" json:"id"`
	MemberOneID int64     `db:"member_one_id" json:"memberOneId"`
	MemberTwoID int64     `db:"member_two_id" json:"memberTwoId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ChatKind distinguishes server channels from direct conversations.
type ChatKind string

const (
	ChatKindChannel      ChatKind = "channel"
	ChatKindConversation ChatKind = "conversation"
)

// ChatRef identifies the scope of a message history and its live events.
type ChatRef struct {
	Kind ChatKind
	ID   int64
}

func (r ChatRef) String() string {
	return fmt.Sprintf("%s-%d", r.Kind, r.ID)
}

// AddTopic carries created events.
func (r ChatRef) AddTopic() string {
	return "chat:" + r.String() + ":messages"
}

// UpdateTopic carries updated and deleted events.
func (r ChatRef) UpdateTopic() string {
	return r.AddTopic() + ":update"
}

// OwnsTopic reports whether topic is one of r's topics.
func (r ChatRef) OwnsTopic(topic string) bool {
	return topic == r.AddTopic() || topic == r.UpdateTopic()
}

// ParseChatRef parses the form produced by ChatRef.String.
func ParseChatRef(s string) (ChatRef, error) {
	kind, rawID, ok := strings.Cut(s, "-")
	if !ok {
		return ChatRef{}, fmt.Errorf("invalid chat ref %q", s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return ChatRef{}, fmt.Errorf("invalid chat id in %q", s)
	}
	ref := ChatRef{Kind: ChatKind(kind), ID: id}
	if ref.Kind != ChatKindChannel && ref.Kind != ChatKindConversation {
		return ChatRef{}, fmt.Errorf("unknown chat kind %q", kind)
	}
	return ref, nil
}
