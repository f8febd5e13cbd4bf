package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
	"github.com/velaterm/vela/usecase"
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

	// Poll period while playback is paused or draining.
	playbackPollPeriod = 20 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the JWT check on the upgrade route.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and routes their audio through the
// media server.
type Hub struct {
	// Registered clients.
	clients map[entities.ClientID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	media     *usecase.MediaServer
	tts       repositories.TtsProvider
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. The TTS provider may be nil when no
// synthesis engine is configured; speak requests then fail with an error
// message instead of audio.
func NewHub(media *usecase.MediaServer, tts repositories.TtsProvider, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[entities.ClientID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		media:      media,
		tts:        tts,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.Uint64("clientID", uint64(client.clientID)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.media.ClientDisconnect(client.clientID)
			h.logger.Info("Client unregistered", zap.Uint64("clientID", uint64(client.clientID)))
		}
	}
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// Type is the websocket message type, websocket.TextMessage or
	// websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	clientID entities.ClientID
	role     string

	logger *zap.Logger

	// Playback state, guarded by playMu. synthCancel aborts the in-flight
	// synthesis; replacement carries the utterance installed by an interrupt.
	playMu      sync.Mutex
	playing     bool
	synthCancel context.CancelFunc
	replacement *entities.TtsUtterance
}

// HandleWebSocket upgrades the connection for a pre-authenticated client
func HandleWebSocket(hub *Hub, c echo.Context, clientID entities.ClientID, role string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		role:     role,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.abortSynthesis()
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
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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

// sendJSON marshals and queues a text message without blocking the caller
func (c *Client) sendJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping message, send buffer full",
			zap.Uint64("clientID", uint64(c.clientID)))
	}
}

func (c *Client) sendError(code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// processMessage processes incoming control messages from the client
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError("invalid_message", "message validation failed", err)
		return
	}

	switch msg := parsed.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *SpeakMessage:
		c.handleSpeak(msg)
	case *PauseMessage:
		c.handlePause()
	case *ResumeMessage:
		c.handleResume()
	case *CancelMessage:
		c.handleCancel(msg)
	case *InterruptMessage:
		c.handleInterrupt(msg)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// processBinaryAudioChunk feeds binary audio into the recognition session and
// relays any interim hypothesis back to the client
func (c *Client) processBinaryAudioChunk(data []byte) {
	owner, ok := c.hub.media.SttActiveClient()
	if !ok || owner != c.clientID {
		c.logger.Warn("Received audio chunk without an open recognition session",
			zap.Uint64("clientID", uint64(c.clientID)))
		return
	}

	if err := c.hub.media.SttFeedAudio(data); err != nil {
		c.logger.Error("Failed to feed audio", zap.Error(err))
		c.sendError("audio_failed", "failed to process audio", err)
		return
	}

	if text, confidence, ok := c.hub.media.SttPartial(); ok {
		c.sendJSON(&PartialResultMessage{
			BaseMessage: NewBaseMessage(MessageTypePartialResult),
			Text:        text,
			Confidence:  confidence,
		})
	}
}

// handleListeningStart opens a recognition session fed by this connection
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	format := entities.DefaultAudioFormat()
	if msg.SampleRate > 0 {
		format.SampleRate = msg.SampleRate
	}
	if msg.Channels > 0 {
		format.Channels = msg.Channels
	}
	if msg.Encoding != "" {
		format.Encoding = msg.Encoding
	}

	if _, err := c.hub.media.StartSttStreaming(ctx, c.clientID, format); err != nil {
		c.logger.Error("Failed to start recognition session",
			zap.Uint64("clientID", uint64(c.clientID)), zap.Error(err))
		code := "listening_failed"
		if errors.Is(err, entities.ErrSttAlreadyActive) {
			code = "session_busy"
		}
		c.sendError(code, "failed to start listening", err)
		return
	}

	c.logger.Info("Recognition session started",
		zap.Uint64("clientID", uint64(c.clientID)),
		zap.Int("sampleRate", format.SampleRate))
	c.sendJSON(&ListeningStartMessage{
		BaseMessage: NewBaseMessage(MessageTypeListeningStart),
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		Encoding:    format.Encoding,
	})
}

// handleListeningEnd finishes the recognition session and returns the final
// result
func (c *Client) handleListeningEnd() {
	owner, ok := c.hub.media.SttActiveClient()
	if !ok || owner != c.clientID {
		c.sendError("no_session", "no open recognition session", nil)
		return
	}

	result, err := c.hub.media.StopSttStreaming()
	if err != nil {
		c.logger.Error("Failed to end recognition session",
			zap.Uint64("clientID", uint64(c.clientID)), zap.Error(err))
		c.sendError("listening_failed", "failed to end listening", err)
		return
	}
	// Drain the buffered copy; this connection is the consumer.
	if _, err := c.hub.media.ConsumeResult(c.clientID); err != nil {
		c.logger.Warn("Failed to consume result", zap.Error(err))
	}

	c.logger.Info("Recognition completed",
		zap.Uint64("clientID", uint64(c.clientID)),
		zap.String("text", result.Text),
		zap.Int("confidence", result.Confidence))
	c.sendJSON(&FinalResultMessage{
		BaseMessage: NewBaseMessage(MessageTypeFinalResult),
		Text:        result.Text,
		Confidence:  result.Confidence,
	})
}

// handleSpeak queues text for playback and starts the playback loop if the
// queue was idle
func (c *Client) handleSpeak(msg *SpeakMessage) {
	if c.hub.tts == nil {
		c.sendError("no_tts", "no synthesis engine configured", nil)
		return
	}

	format := entities.DefaultAudioFormat()
	if msg.SampleRate > 0 {
		format.SampleRate = msg.SampleRate
	}
	if msg.Channels > 0 {
		format.Channels = msg.Channels
	}
	if msg.Encoding != "" {
		format.Encoding = msg.Encoding
	}
	priority := entities.PriorityNormal
	if msg.Priority == "high" {
		priority = entities.PriorityHigh
	}

	id, err := c.hub.media.QueueTts(c.clientID, msg.Text, priority, format)
	if err != nil {
		code := "speak_failed"
		if errors.Is(err, entities.ErrTtsQueueFull) {
			code = "queue_full"
		}
		c.sendError(code, "failed to queue speech", err)
		return
	}
	c.logger.Info("Speech queued",
		zap.Uint64("clientID", uint64(c.clientID)),
		zap.Uint64("utteranceID", uint64(id)))

	c.startPlaybackLoop()
}

func (c *Client) handlePause() {
	if err := c.hub.media.PauseTts(c.clientID); err != nil {
		c.sendError("pause_failed", "failed to pause playback", err)
	}
}

func (c *Client) handleResume() {
	if err := c.hub.media.ResumeTts(c.clientID); err != nil {
		c.sendError("resume_failed", "failed to resume playback", err)
	}
}

func (c *Client) handleCancel(msg *CancelMessage) {
	if _, err := c.hub.media.CancelTts(c.clientID, msg.ClearQueue); err != nil {
		c.sendError("cancel_failed", "failed to cancel playback", err)
		return
	}
	c.abortSynthesis()
}

func (c *Client) handleInterrupt(msg *InterruptMessage) {
	id, err := c.hub.media.InterruptTts(c.clientID, msg.Text)
	if err != nil {
		// No playback in flight; treat as an urgent speak instead.
		if errors.Is(err, entities.ErrTtsInvalidState) {
			c.handleSpeak(&SpeakMessage{
				BaseMessage: msg.BaseMessage,
				Text:        msg.Text,
				Priority:    "high",
			})
			return
		}
		c.sendError("interrupt_failed", "failed to interrupt playback", err)
		return
	}

	format := entities.DefaultAudioFormat()
	if stream, ok := c.hub.media.OutputStreamForClient(c.clientID); ok {
		format = stream.Format
	}
	c.playMu.Lock()
	c.replacement = &entities.TtsUtterance{
		ID:       id,
		Text:     msg.Text,
		Priority: entities.PriorityHigh,
		Format:   format,
	}
	cancel := c.synthCancel
	c.playMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// abortSynthesis cancels the in-flight synthesis, if any
func (c *Client) abortSynthesis() {
	c.playMu.Lock()
	cancel := c.synthCancel
	c.replacement = nil
	c.playMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// startPlaybackLoop spawns the playback goroutine unless one is running
func (c *Client) startPlaybackLoop() {
	c.playMu.Lock()
	if c.playing {
		c.playMu.Unlock()
		return
	}
	c.playing = true
	c.playMu.Unlock()

	go c.playbackLoop()
}

// playbackLoop drains the client's queue one utterance at a time, streaming
// synthesized audio between speaking_start and speaking_end markers
func (c *Client) playbackLoop() {
	for {
		utterance, err := c.hub.media.StartTts(c.clientID)
		if err != nil {
			var notFound usecase.ClientNotFoundError
			if !errors.Is(err, entities.ErrTtsQueueEmpty) && !errors.As(err, &notFound) {
				c.logger.Error("Failed to start playback", zap.Error(err))
				c.sendError("speak_failed", "failed to start playback", err)
			}
			// A speak can race the exit; recheck before letting go.
			c.playMu.Lock()
			if c.hub.media.TtsQueueLen(c.clientID) > 0 &&
				c.hub.media.TtsState(c.clientID) == entities.TtsStateIdle {
				c.playMu.Unlock()
				continue
			}
			c.playing = false
			c.playMu.Unlock()
			return
		}

		c.playUtterance(utterance)
	}
}

// playUtterance streams one utterance to the client. It survives interrupts
// by restarting synthesis with the replacement text on the same stream, and
// stops cleanly when playback is cancelled out from under it.
func (c *Client) playUtterance(utterance entities.TtsUtterance) {
	for {
		ctx, cancel := context.WithCancel(context.Background())
		c.playMu.Lock()
		c.synthCancel = cancel
		c.playMu.Unlock()

		finished := c.streamAudio(ctx, utterance)

		c.playMu.Lock()
		c.synthCancel = nil
		next := c.replacement
		c.replacement = nil
		c.playMu.Unlock()
		cancel()

		if finished {
			finishedUtterance, err := c.hub.media.CompleteTts(c.clientID)
			if err != nil {
				c.logger.Warn("Failed to complete playback", zap.Error(err))
				return
			}
			c.sendJSON(&SpeakingEndMessage{
				BaseMessage: NewBaseMessage(MessageTypeSpeakingEnd),
				UtteranceID: uint64(finishedUtterance.ID),
			})
			return
		}
		if next == nil {
			// Cancelled; the stream is already closed.
			return
		}
		utterance = *next
	}
}

// streamAudio synthesizes and sends one utterance's audio. Returns true when
// the utterance played to completion, false when it was cancelled or
// interrupted.
func (c *Client) streamAudio(ctx context.Context, utterance entities.TtsUtterance) bool {
	stream, ok := c.hub.media.OutputStreamForClient(c.clientID)
	if !ok {
		return false
	}

	audioChan, err := c.hub.tts.Synthesize(ctx, utterance.Text, utterance.Format)
	if err != nil {
		c.logger.Error("Synthesis failed", zap.Error(err))
		c.hub.media.CancelTts(c.clientID, false)
		c.sendError("speak_failed", "synthesis failed", err)
		return false
	}

	c.sendJSON(&SpeakingStartMessage{
		BaseMessage: NewBaseMessage(MessageTypeSpeakingStart),
		UtteranceID: uint64(utterance.ID),
		Text:        utterance.Text,
	})

	for chunk := range audioChan {
		if !c.waitWhilePaused(ctx) {
			return false
		}
		select {
		case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: chunk}:
			if err := c.hub.media.RecordStreamTransfer(stream.ID, len(chunk)); err != nil {
				c.logger.Debug("Stream transfer not recorded", zap.Error(err))
			}
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil
}

// waitWhilePaused blocks while the queue is paused. Returns false when the
// playback was cancelled or interrupted meanwhile.
func (c *Client) waitWhilePaused(ctx context.Context) bool {
	for {
		switch c.hub.media.TtsState(c.clientID) {
		case entities.TtsStateSpeaking:
			return true
		case entities.TtsStatePaused:
			select {
			case <-time.After(playbackPollPeriod):
			case <-ctx.Done():
				return false
			}
		default:
			return false
		}
	}
}
