// Package realtime fans chat events out to connected websocket clients.
// Events travel through redis pub/sub so every api instance sees every event
// regardless of which instance accepted the websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

const eventChannel = "chat.events"

// Event is the envelope published for every chat happening. SenderID is set
// for message events so the hub can apply per-viewer block filtering at
// delivery.
type Event struct {
	ChatID   string          `json:"chatId"`
	Kind     string          `json:"kind"`
	SenderID string          `json:"senderId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishMessage(ctx context.Context, msg store.Message) error {
	payload, err := json.Marshal(map[string]any{
		"id":       msg.ID,
		"senderId": msg.SenderID,
		"body":     msg.Body,
		"sentAt":   msg.SentAt,
	})
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	return p.publish(ctx, Event{ChatID: msg.ChatID, Kind: "message.new", SenderID: msg.SenderID, Payload: payload})
}

func (p *Publisher) PublishChatEvent(ctx context.Context, chatID, kind string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal chat event: %w", err)
		}
		raw = encoded
	}
	return p.publish(ctx, Event{ChatID: chatID, Kind: kind, Payload: raw})
}

func (p *Publisher) publish(ctx context.Context, event Event) error {
	envelope, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, eventChannel, envelope).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
