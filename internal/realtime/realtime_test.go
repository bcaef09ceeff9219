package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishMessageRoundTrip(t *testing.T) {
	client := testRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := client.Subscribe(ctx, eventChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	publisher := NewPublisher(client)
	err := publisher.PublishMessage(ctx, store.Message{
		ID:       "msg_1",
		ChatID:   "chat_1",
		SenderID: "user_1",
		Body:     "hello",
	})
	if err != nil {
		t.Fatalf("PublishMessage failed: %v", err)
	}

	select {
	case raw := <-pubsub.Channel():
		var event Event
		if err := json.Unmarshal([]byte(raw.Payload), &event); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		if event.ChatID != "chat_1" {
			t.Errorf("expected chat_1, got %s", event.ChatID)
		}
		if event.Kind != "message.new" {
			t.Errorf("expected message.new, got %s", event.Kind)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

// fakePolicy admits every member and blocks the pairs listed in blocks,
// keyed viewer -> blocked author.
type fakePolicy struct {
	blocks map[string]string
}

func (f fakePolicy) IsActiveMember(ctx context.Context, chatID, userID string) bool { return true }

func (f fakePolicy) IsBlocked(ctx context.Context, viewerID, authorID string) bool {
	return f.blocks[viewerID] == authorID
}

func TestHubBroadcastsToChatClients(t *testing.T) {
	redisClient := testRedis(t)
	hub := NewHub(redisClient, fakePolicy{}, func(ctx context.Context) string { return "user_1" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Give the subscription a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	listener := &client{chatID: "chat_1", send: make(chan []byte, 1)}
	hub.register(listener)
	other := &client{chatID: "chat_2", send: make(chan []byte, 1)}
	hub.register(other)

	publisher := NewPublisher(redisClient)
	if err := publisher.PublishChatEvent(ctx, "chat_1", "member.added", map[string]string{"userId": "user_2"}); err != nil {
		t.Fatalf("PublishChatEvent failed: %v", err)
	}

	select {
	case payload := <-listener.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if event.Kind != "member.added" {
			t.Errorf("expected member.added, got %s", event.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	select {
	case <-other.send:
		t.Fatal("client on another chat should not receive the event")
	default:
	}
}

func TestHubSkipsViewersWhoBlockedTheSender(t *testing.T) {
	redisClient := testRedis(t)
	policy := fakePolicy{blocks: map[string]string{"user_blocker": "user_2"}}
	hub := NewHub(redisClient, policy, func(ctx context.Context) string { return "user_1" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	plain := &client{chatID: "chat_1", userID: "user_1", send: make(chan []byte, 1)}
	hub.register(plain)
	blocker := &client{chatID: "chat_1", userID: "user_blocker", send: make(chan []byte, 1)}
	hub.register(blocker)

	publisher := NewPublisher(redisClient)
	err := publisher.PublishMessage(ctx, store.Message{
		ID:       "msg_1",
		ChatID:   "chat_1",
		SenderID: "user_2",
		Body:     "hello",
	})
	if err != nil {
		t.Fatalf("PublishMessage failed: %v", err)
	}

	select {
	case payload := <-plain.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if event.SenderID != "user_2" {
			t.Errorf("expected sender user_2, got %s", event.SenderID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery to the unblocked viewer")
	}

	select {
	case <-blocker.send:
		t.Fatal("viewer who blocked the sender should not receive the event")
	default:
	}
}
