package ws

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"discord-chat/internal/models"
	"discord-chat/internal/observability"
)

// RedisBroker fans live events out across instances. Every instance
// publishes to prefix+chat and delivers what it receives to its own hub.
type RedisBroker struct {
	client redis.UniversalClient
	hub    *Hub
	prefix string
}

func NewRedisBroker(client redis.UniversalClient, hub *Hub, prefix string) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, prefix: prefix}
}

// Broadcast publishes ev on the chat's redis channel.
func (b *RedisBroker) Broadcast(ctx context.Context, chat models.ChatRef, ev models.LiveEvent) error {
	payload, err := encodeEvent(chat, ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(chat), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", chat, err)
	}
	observability.IncLiveEvent(string(chat.Kind), string(ev.Kind), "published")
	return nil
}

// Run relays published events to the local hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer func() {
		_ = pubsub.Close()
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	log.Info("live broker subscribed", "pattern", b.prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			chat, err := b.chatOf(msg.Channel)
			if err != nil {
				log.Warn("ignoring live event on unknown channel", "channel", msg.Channel, "err", err)
				continue
			}
			b.hub.Deliver(chat, []byte(msg.Payload))
			observability.IncLiveEvent(string(chat.Kind), "relay", "delivered")
		}
	}
}

func (b *RedisBroker) channel(chat models.ChatRef) string {
	return b.prefix + chat.String()
}

func (b *RedisBroker) chatOf(channel string) (models.ChatRef, error) {
	name, ok := strings.CutPrefix(channel, b.prefix)
	if !ok {
		return models.ChatRef{}, fmt.Errorf("channel %q outside prefix %q", channel, b.prefix)
	}
	return models.ParseChatRef(name)
}
