package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"discord-chat/internal/models"
	"discord-chat/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateServer(ctx context.Context, profileID, name string) (models.Server, models.Member, error) {
	args := m.Called(ctx, profileID, name)
	var server models.Server
	if val := args.Get(0); val != nil {
		server = val.(models.Server)
	}
	var member models.Member
	if val := args.Get(1); val != nil {
		member = val.(models.Member)
	}
	return server, member, args.Error(2)
}

func (m *ChatRepositoryMock) JoinServer(ctx context.Context, inviteCode, profileID string) (models.Member, error) {
	args := m.Called(ctx, inviteCode, profileID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateServer(ctx context.Context, serverID int64, name, imageURL string) (models.Server, error) {
	args := m.Called(ctx, serverID, name, imageURL)
	var server models.Server
	if val := args.Get(0); val != nil {
		server = val.(models.Server)
	}
	return server, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChannel(ctx context.Context, serverID int64, profileID, name string, kind models.ChannelType) (models.Channel, error) {
	args := m.Called(ctx, serverID, profileID, name, kind)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *ChatRepositoryMock) ServerMember(ctx context.Context, serverID int64, profileID string) (models.Member, error) {
	args := m.Called(ctx, serverID, profileID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *ChatRepositoryMock) ChatMember(ctx context.Context, chat models.ChatRef, profileID string) (models.Member, error) {
	args := m.Called(ctx, chat, profileID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *ChatRepositoryMock) GetMember(ctx context.Context, memberID int64) (models.Member, error) {
	args := m.Called(ctx, memberID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *ChatRepositoryMock) GetOrCreateConversation(ctx context.Context, memberOneID, memberTwoID int64) (models.Conversation, error) {
	args := m.Called(ctx, memberOneID, memberTwoID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, scopeID int64, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, scopeID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Create(ctx context.Context, scopeID int64, memberID int64, content, fileURL *string) (models.Message, error) {
	args := m.Called(ctx, scopeID, memberID, content, fileURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, scopeID int64, messageID int64) (models.Message, error) {
	args := m.Called(ctx, scopeID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(ctx context.Context, chat models.ChatRef, ev models.LiveEvent) error {
	args := m.Called(ctx, chat, ev)
	return args.Error(0)
}

type SignerMock struct {
	mock.Mock
}

func (m *SignerMock) PresignUpload(ctx context.Context, objectKey, contentType string) (string, string, error) {
	args := m.Called(ctx, objectKey, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// PublisherMock stands in for the AMQP publisher behind audit and ws events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ interface {
	Broadcast(context.Context, models.ChatRef, models.LiveEvent) error
} = (*BroadcasterMock)(nil)
