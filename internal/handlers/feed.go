package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/models"
)

const feedWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the envelope of every feed message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// FeedHello is sent once per connection. Clients compare InstanceID across
// reconnects to detect a server restart.
type FeedHello struct {
	InstanceID string    `json:"instance_id"`
	ServerTime time.Time `json:"server_time"`
}

// FeedHandler broadcasts every delivered report payload to websocket clients
type FeedHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string
}

func NewFeedHandler(logger arbor.ILogger) *FeedHandler {
	h := &FeedHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}
	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("Report feed initialized")
	return h
}

// InstanceID returns the id sent to clients on connect
func (h *FeedHandler) InstanceID() string {
	return h.serverInstanceID
}

// ClientCount returns the number of connected clients
func (h *FeedHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket handles GET /ws
func (h *FeedHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("Feed client connected")

	hello, _ := json.Marshal(WSMessage{
		Type:    "hello",
		Payload: FeedHello{InstanceID: h.serverInstanceID, ServerTime: time.Now().UTC()},
	})
	h.write(conn, mutex, hello)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("Feed client disconnected")
	}()

	// Clients never send anything useful; reading only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// Observe broadcasts a delivered payload to every connected client
func (h *FeedHandler) Observe(payload *models.ReportPayload) {
	if payload == nil {
		return
	}
	data, err := json.Marshal(WSMessage{Type: "report", Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", payload.RunID).Msg("Failed to marshal report message")
		return
	}
	h.broadcast(data)
}

// Close disconnects every client
func (h *FeedHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
}

func (h *FeedHandler) broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		h.write(conn, mutexes[i], data)
	}
}

func (h *FeedHandler) write(conn *websocket.Conn, mutex *sync.Mutex, data []byte) {
	mutex.Lock()
	conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	err := conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()

	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send feed message to client")
	}
}
