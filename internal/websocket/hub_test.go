package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/velaterm/vela/adapters/stt"
	"github.com/velaterm/vela/adapters/tts"
	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/usecase"
)

func setupTestHub(t testing.TB) (*Hub, *usecase.MediaServer) {
	t.Helper()
	logger := zap.NewNop()

	sttProvider := stt.NewMockProvider(logger)
	ttsProvider := tts.NewMockProvider(logger)
	media := usecase.NewMediaServer(usecase.DefaultConfig(), sttProvider, ttsProvider, nil, logger)

	return NewHub(media, ttsProvider, logger), media
}

func newTestClient(hub *Hub, clientID entities.ClientID) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		role:     "terminal",
		logger:   zap.NewNop(),
	}
}

// drainMessages collects everything queued on the client's send channel,
// waiting until the deadline for playback goroutines to finish.
func drainMessages(t *testing.T, c *Client, deadline time.Duration) []WriteData {
	t.Helper()
	var out []WriteData
	timeout := time.After(deadline)
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		case <-timeout:
			return out
		}
	}
}

func textMessageTypes(t *testing.T, messages []WriteData) []MessageType {
	t.Helper()
	var types []MessageType
	for _, msg := range messages {
		if msg.Type != websocket.TextMessage {
			continue
		}
		var base BaseMessage
		if err := json.Unmarshal(msg.Payload, &base); err != nil {
			t.Fatalf("Failed to parse message %q: %v", msg.Payload, err)
		}
		types = append(types, base.Type)
	}
	return types
}

func TestNewHub(t *testing.T) {
	hub, _ := setupTestHub(t)

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil {
		t.Error("Hub register channel not initialized")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel not initialized")
	}
	if hub.validator == nil {
		t.Error("Hub validator not initialized")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, media := setupTestHub(t)
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.register <- client

	deadline := time.After(time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("Client never registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Leave a queue behind; unregister must clean it up.
	if _, err := media.QueueTts(1, "left behind", entities.PriorityNormal, entities.DefaultAudioFormat()); err != nil {
		t.Fatalf("QueueTts failed: %v", err)
	}

	hub.unregister <- client
	deadline = time.After(time.Second)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("Client never unregistered")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if media.TtsQueueLen(1) != 0 {
		t.Error("Disconnect should drop the client's queue")
	}
}

func TestListeningFlow(t *testing.T) {
	hub, media := setupTestHub(t)
	client := newTestClient(hub, 3)

	client.processMessage([]byte(`{"type": "listening_start", "language": "en-US"}`))
	if media.SttState() != entities.SttStateListening {
		t.Fatalf("Expected listening, got %s", media.SttState())
	}

	client.processBinaryAudioChunk(make([]byte, 2000))
	client.processMessage([]byte(`{"type": "listening_end"}`))

	if media.SttState() != entities.SttStateIdle {
		t.Errorf("Expected idle after listening_end, got %s", media.SttState())
	}

	messages := drainMessages(t, client, 100*time.Millisecond)
	types := textMessageTypes(t, messages)

	sawFinal := false
	for _, mt := range types {
		if mt == MessageTypeError {
			t.Errorf("Unexpected error message in %v", types)
		}
		if mt == MessageTypeFinalResult {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Errorf("Expected a final_result message, got %v", types)
	}
}

func TestListeningExclusivity(t *testing.T) {
	hub, _ := setupTestHub(t)
	first := newTestClient(hub, 1)
	second := newTestClient(hub, 2)

	first.processMessage([]byte(`{"type": "listening_start"}`))
	second.processMessage([]byte(`{"type": "listening_start"}`))

	types := textMessageTypes(t, drainMessages(t, second, 100*time.Millisecond))
	if len(types) != 1 || types[0] != MessageTypeError {
		t.Errorf("Second client should get an error, got %v", types)
	}

	// Audio from the non-owner is dropped, not fed.
	second.processBinaryAudioChunk(make([]byte, 100))
}

func TestSpeakPlaybackFlow(t *testing.T) {
	hub, media := setupTestHub(t)
	client := newTestClient(hub, 5)

	client.processMessage([]byte(`{"type": "speak", "text": "hello"}`))

	deadline := time.After(2 * time.Second)
	for media.TtsState(5) != entities.TtsStateIdle || media.TtsQueueLen(5) != 0 {
		select {
		case <-deadline:
			t.Fatalf("Playback never finished, state %s", media.TtsState(5))
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	messages := drainMessages(t, client, 100*time.Millisecond)
	var sawStart, sawEnd, sawAudio bool
	for _, msg := range messages {
		if msg.Type == websocket.BinaryMessage {
			sawAudio = true
			continue
		}
		var base BaseMessage
		if err := json.Unmarshal(msg.Payload, &base); err != nil {
			t.Fatalf("Failed to parse message: %v", err)
		}
		switch base.Type {
		case MessageTypeSpeakingStart:
			sawStart = true
		case MessageTypeSpeakingEnd:
			sawEnd = true
		case MessageTypeError:
			t.Errorf("Unexpected error message: %s", msg.Payload)
		}
	}
	if !sawStart || !sawAudio || !sawEnd {
		t.Errorf("Expected start/audio/end, got start=%v audio=%v end=%v", sawStart, sawAudio, sawEnd)
	}

	if _, ok := media.OutputStreamForClient(5); ok {
		t.Error("Output stream should be closed after playback")
	}
}

func TestSpeakValidation(t *testing.T) {
	hub, _ := setupTestHub(t)
	client := newTestClient(hub, 1)

	client.processMessage([]byte(`{"type": "speak"}`))

	types := textMessageTypes(t, drainMessages(t, client, 50*time.Millisecond))
	if len(types) != 1 || types[0] != MessageTypeError {
		t.Errorf("Expected a single error message, got %v", types)
	}
}

func TestPingPong(t *testing.T) {
	hub, _ := setupTestHub(t)
	client := newTestClient(hub, 1)

	client.processMessage([]byte(`{"type": "ping", "data": "marco"}`))

	messages := drainMessages(t, client, 50*time.Millisecond)
	if len(messages) != 1 {
		t.Fatalf("Expected one response, got %d", len(messages))
	}
	var pong PongMessage
	if err := json.Unmarshal(messages[0].Payload, &pong); err != nil {
		t.Fatalf("Failed to parse pong: %v", err)
	}
	if pong.Type != MessageTypePong || pong.Data != "marco" {
		t.Errorf("Unexpected pong: %+v", pong)
	}
}

func TestMaintenanceAdvancesClock(t *testing.T) {
	_, media := setupTestHub(t)

	service := NewMaintenanceService(media, 10*time.Millisecond, zap.NewNop())
	service.Start()
	time.Sleep(60 * time.Millisecond)
	service.Stop()

	if media.Clock() == 0 {
		t.Error("Maintenance loop should advance the logical clock")
	}
}
