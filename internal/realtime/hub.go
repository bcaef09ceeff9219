package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// viewerPolicy gates websocket subscriptions and per-client delivery the
// same way message fetches are gated.
type viewerPolicy interface {
	IsActiveMember(ctx context.Context, chatID, userID string) bool
	IsBlocked(ctx context.Context, viewerID, authorID string) bool
}

type client struct {
	chatID string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub bridges the redis event stream to local websocket connections, one
// subscription per process regardless of client count.
type Hub struct {
	redis    *redis.Client
	perm     viewerPolicy
	userID   func(ctx context.Context) string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates a hub. userID extracts the authenticated user from the
// request context; the HTTP layer sets it before delegating here.
func NewHub(redisClient *redis.Client, perm viewerPolicy, userID func(ctx context.Context) string) *Hub {
	return &Hub{
		redis:   redisClient,
		perm:    perm,
		userID:  userID,
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run consumes the redis event channel until ctx is done. Call it once from
// main in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf(`{"component":"realtime","error":"bad event payload: %s"}`, err)
				continue
			}
			h.broadcast(ctx, event, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, event Event, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.ChatID] {
		// A viewer who blocked the sender never receives that sender's
		// message events; their own echoes always go through.
		if event.SenderID != "" && c.userID != event.SenderID && h.perm.IsBlocked(ctx, c.userID, event.SenderID) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop the event rather than the hub.
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.chatID] == nil {
		h.clients[c.chatID] = make(map[*client]struct{})
	}
	h.clients[c.chatID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.chatID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.chatID)
		}
	}
}

// ServeHTTP upgrades the connection and streams events for one chat,
// selected by the chatId query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID := strings.TrimSpace(r.URL.Query().Get("chatId"))
	if chatID == "" {
		http.Error(w, "chatId is required", http.StatusUnprocessableEntity)
		return
	}

	userID := h.userID(r.Context())
	if userID == "" || !h.perm.IsActiveMember(r.Context(), chatID, userID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{chatID: chatID, userID: userID, conn: conn, send: make(chan []byte, 64)}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		close(c.send)
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; any read error or close tears the client down.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
