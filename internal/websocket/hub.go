package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
	"github.com/pitchside/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// OrchestratorFactory builds a conversation orchestrator bound to the given
// event sink. Each connected client gets its own orchestrator, so one
// viewer's capture or analysis never interferes with another's.
type OrchestratorFactory func(sink usecase.EventSink, logger *zap.Logger) *usecase.Orchestrator

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	newOrchestrator OrchestratorFactory
	statsInterval   time.Duration

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(factory OrchestratorFactory, statsInterval time.Duration, logger *zap.Logger) *Hub {
	if statsInterval <= 0 {
		statsInterval = usecase.StatsRefreshInterval
	}
	return &Hub{
		clients:         make(map[string]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		newOrchestrator: factory,
		statsInterval:   statsInterval,
		logger:          logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			// A reconnect may have replaced this session's entry already;
			// only remove the mapping when it still points at this client.
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
			}
			close(client.send)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Orchestrator returns the orchestrator bound to the given session, or nil
// when that session has no live connection.
func (h *Hub) Orchestrator(sessionID string) *usecase.Orchestrator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[sessionID]; ok {
		return client.orchestrator
	}
	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its
// orchestrator. It implements usecase.EventSink so orchestrator effects
// flow straight out as frames.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Session ID for this client
	sessionID string

	orchestrator *usecase.Orchestrator
	validator    *MessageValidator

	// cancelStats stops the background stats refresh on disconnect
	cancelStats context.CancelFunc

	logger *zap.Logger
}

// HandleWebSocket upgrades the connection and binds a fresh orchestrator to
// the client. sessionID comes from the authenticated token.
func HandleWebSocket(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	clientLogger := logger.With(zap.String("sessionID", sessionID))
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		sessionID: sessionID,
		validator: NewMessageValidator(),
		logger:    clientLogger,
	}
	client.orchestrator = hub.newOrchestrator(client, clientLogger)

	statsCtx, cancel := context.WithCancel(context.Background())
	client.cancelStats = cancel

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.orchestrator.RunStatsRefresh(statsCtx, hub.statsInterval)

	return nil
}

// MessageAppended implements usecase.EventSink
func (c *Client) MessageAppended(m entities.Message) {
	c.enqueueJSON(CreateChatMessage(m))
	if m.Role == entities.MessageRoleAssistant && m.AudioURL != "" {
		c.enqueueJSON(CreateSpeakAudioMessage(m.AudioURL))
	}
}

// StatusChanged implements usecase.EventSink
func (c *Client) StatusChanged(status entities.InteractionStatus) {
	c.enqueueJSON(CreateStatusMessage(status))
}

// StatsUpdated implements usecase.EventSink
func (c *Client) StatsUpdated(stats entities.StatsSnapshot) {
	c.enqueueJSON(CreateStatsMessage(stats))
}

// SpeechSynthesized implements usecase.EventSink
func (c *Client) SpeechSynthesized(audioURL string) {
	c.enqueueJSON(CreateSpeakAudioMessage(audioURL))
}

func (c *Client) enqueueJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping outbound message, send buffer full")
	}
}

// readPump pumps messages from the websocket connection to the orchestrator.
func (c *Client) readPump() {
	defer func() {
		c.cancelStats()
		c.orchestrator.StopListening()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.orchestrator.FeedAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the orchestrator to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches a validated control message to the orchestrator
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected inbound message", zap.Error(err))
		c.enqueueJSON(CreateErrorMessage("invalid_message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *QueryMessage:
		go c.orchestrator.SubmitText(context.Background(), msg.Text)

	case *ListenStartMessage:
		c.orchestrator.ToggleListening(context.Background())

	case *ListenEndMessage:
		c.orchestrator.StopListening()

	case *ToggleSpeakMessage:
		c.orchestrator.ToggleSpeaking()

	case *AttachVideoMessage:
		c.orchestrator.AttachVideo(entities.VideoHandle{
			ID:       msg.VideoID,
			URL:      msg.URL,
			Duration: msg.Duration,
		})

	case *PlaybackTimeMessage:
		c.orchestrator.UpdatePlaybackTime(msg.Seconds)

	case *VoiceSettingsMessage:
		c.orchestrator.SetSpeakOptions(repositories.SpeakOptions{
			Rate:   msg.Rate,
			Pitch:  msg.Pitch,
			Volume: msg.Volume,
		})

	case *BaseMessage:
		if msg.Type == MessageTypePing {
			c.enqueueJSON(CreatePongMessage())
		}

	default:
		c.logger.Warn("Unhandled message type")
	}
}
