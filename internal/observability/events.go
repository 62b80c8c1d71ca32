package observability

import (
	"context"
	"sync"
	"time"
)

// Publisher is satisfied by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes a websocket lifecycle event of one connection.
type WSEvent struct {
	Kind        string    `json:"kind"`
	Chat        string    `json:"chat"`
	Event       string    `json:"event"`
	ConnID      string    `json:"conn_id"`
	DurationMS  int64     `json:"duration_ms"`
	Reason      string    `json:"reason"`
	ProfileID   string    `json:"profile_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	ConnectedAt time.Time `json:"-"`
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher Publisher
)

func SetPublisher(publisher Publisher) {
	publisherMu.Lock()
	defaultPublisher = publisher
	publisherMu.Unlock()
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	publisherMu.RLock()
	p := defaultPublisher
	publisherMu.RUnlock()
	if p == nil {
		return nil
	}

	err := p.Publish(ctx, routingKey, message)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

// PublishWSEvent counts ev and publishes it on the routing key of its kind.
func PublishWSEvent(ctx context.Context, ev WSEvent) {
	if !ev.ConnectedAt.IsZero() {
		ev.DurationMS = time.Since(ev.ConnectedAt).Milliseconds()
	}
	IncWSEvent(ev.Kind, ev.Event)
	_ = PublishEvent(ctx, "ws_events."+ev.Kind, EventEnvelope{
		EventType: "ws_events",
		EventName: ev.Event,
		Payload:   ev,
	})
}
