package models

import "time"

// DeletedMessageText replaces the body of a soft-deleted message.
const DeletedMessageText = "This message has been deleted."

// Message is a channel message or a direct message. ChatID holds the channel
// id or the conversation id depending on where the message lives.
type Message struct {
	ID        int64     `db:"id" json:"id" validate:"required"`
	ChatID    int64     `db:"chat_id" json:"chatId"`
	MemberID  int64     `db:"member_id" json:"memberId" validate:"required"`
	Content   *string   `db:"content" json:"content"`
	FileURL   *string   `db:"file_url" json:"fileUrl"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"createdAt" validate:"required"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt" validate:"required"`
}

// IsUpdated reports whether the message was modified after creation.
func (m Message) IsUpdated() bool {
	return !m.UpdatedAt.Equal(m.CreatedAt)
}

// SoftDeleted returns a copy of m marked deleted. Id and author are kept.
func (m Message) SoftDeleted(at time.Time) Message {
	text := DeletedMessageText
	m.Content = &text
	m.FileURL = nil
	m.Deleted = true
	if !at.IsZero() {
		m.UpdatedAt = at
	}
	return m
}

// MessagePage is the body returned by the history endpoints.
type MessagePage struct {
	Items      []Message `json:"items"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

// EventKind tags a live event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// LiveEvent is broadcast over websockets whenever a message changes.
type LiveEvent struct {
	Topic   string    `json:"topic" validate:"required"`
	Kind    EventKind `json:"kind" validate:"required,oneof=created updated deleted"`
	Message *Message  `json:"message" validate:"required"`
}

// NewLiveEvent builds the event for msg on the topic matching kind.
func NewLiveEvent(chat ChatRef, kind EventKind, msg Message) LiveEvent {
	topic := chat.UpdateTopic()
	if kind == EventCreated {
		topic = chat.AddTopic()
	}
	return LiveEvent{Topic: topic, Kind: kind, Message: &msg}
}
