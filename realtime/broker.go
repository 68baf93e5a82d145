// Package realtime streams in-app alert events to connected users over
// Server-Sent Events and WebSocket.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrBrokerBusy is returned when the publish buffer is full
var ErrBrokerBusy = errors.New("realtime broker buffer full")

// UserHeader carries the user id when the query string does not
const UserHeader = "X-User-ID"

const (
	clientBuffer = 32
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

type client struct {
	userID string
	ch     chan []byte
}

type message struct {
	userID string
	data   []byte
}

// Broker fans events out to the SSE and WebSocket connections of each user
type Broker struct {
	clients    map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewBroker creates a broker; call Run to start it
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		clients:    make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 1000),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run starts the broker loop and returns after Stop
func (b *Broker) Run() {
	for {
		select {
		case <-b.done:
			b.mu.Lock()
			for _, set := range b.clients {
				for c := range set {
					close(c.ch)
				}
			}
			b.clients = make(map[string]map[*client]bool)
			b.mu.Unlock()
			return

		case c := <-b.register:
			b.mu.Lock()
			set, ok := b.clients[c.userID]
			if !ok {
				set = make(map[*client]bool)
				b.clients[c.userID] = set
			}
			set[c] = true
			b.mu.Unlock()
			b.logger.Debug("realtime client connected", zap.String("user_id", c.userID), zap.Int("connections", len(set)))

		case c := <-b.unregister:
			b.mu.Lock()
			if set, ok := b.clients[c.userID]; ok && set[c] {
				delete(set, c)
				close(c.ch)
				if len(set) == 0 {
					delete(b.clients, c.userID)
				}
			}
			b.mu.Unlock()
			b.logger.Debug("realtime client disconnected", zap.String("user_id", c.userID))

		case msg := <-b.broadcast:
			b.mu.RLock()
			for c := range b.clients[msg.userID] {
				select {
				case c.ch <- msg.data:
				default:
					// Slow client, drop rather than block everyone else
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Stop ends Run and closes every client stream
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Connections returns the number of open connections of a user
func (b *Broker) Connections(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

// PublishToUser queues an event for every connection of the user
func (b *Broker) PublishToUser(userID, event string, payload interface{}) error {
	data, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("PublishToUser: %w", err)
	}

	select {
	case b.broadcast <- message{userID: userID, data: data}:
		return nil
	default:
		return ErrBrokerBusy
	}
}

// subscribe registers a client, or returns false once the broker is stopped
func (b *Broker) subscribe(userID string) (*client, bool) {
	c := &client{userID: userID, ch: make(chan []byte, clientBuffer)}
	select {
	case b.register <- c:
		return c, true
	case <-b.done:
		return nil, false
	}
}

func (b *Broker) unsubscribe(c *client) {
	select {
	case b.unregister <- c:
	case <-b.done:
	}
}

func userFrom(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user_id")); u != "" {
		return u
	}
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// ServeHTTP streams the user's events as Server-Sent Events
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	c, ok := b.subscribe(userID)
	if !ok {
		http.Error(w, "broker stopped", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			b.unsubscribe(c)
			return
		case msg, open := <-c.ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ServeWS streams the user's events over a WebSocket connection
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	c, ok := b.subscribe(userID)
	if !ok {
		return
	}

	// The read side only watches for the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			b.unsubscribe(c)
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.unsubscribe(c)
				return
			}
		case msg, open := <-c.ch:
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.unsubscribe(c)
				return
			}
		}
	}
}
