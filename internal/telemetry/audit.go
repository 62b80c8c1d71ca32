package telemetry

import (
	"context"
	log "log/slog"
	"time"
)

const (
	auditSchemaVersion = 1
	auditEventType     = "audit_log"

	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEntry is one user action on a server, chat or message.
type AuditEntry struct {
	Level     string
	Action    string
	Chat      string
	TargetID  int64
	Text      string
	RequestID string
	ProfileID string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level    string `json:"level"`
	Action   string `json:"action"`
	Chat     string `json:"chat,omitempty"`
	TargetID int64  `json:"target_id,omitempty"`
	Text     string `json:"text"`
}

// AuditEmitter turns audit entries into audit_log envelopes on the
// configured routing key. A nil emitter drops everything.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

func (e *AuditEmitter) envelope(entry AuditEntry) AuditEnvelope {
	level := entry.Level
	if level == "" {
		level = LevelInfo
	}
	var userID *string
	if entry.ProfileID != "" {
		id := entry.ProfileID
		userID = &id
	}
	return AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventType:     auditEventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:    level,
			Action:   entry.Action,
			Chat:     entry.Chat,
			TargetID: entry.TargetID,
			Text:     entry.Text,
		},
	}
}

// Record never fails the caller; publish errors are logged.
func (e *AuditEmitter) Record(ctx context.Context, entry AuditEntry) {
	if e == nil || e.publisher == nil {
		return
	}

	env := e.envelope(entry)
	log.DebugContext(ctx, "audit", "action", entry.Action, "chat", entry.Chat, "target_id", entry.TargetID)
	if err := e.publisher.Publish(ctx, e.routingKey, env); err != nil {
		log.WarnContext(ctx, "audit publish failed", "routing_key", e.routingKey, "action", entry.Action, "err", err)
	}
}
