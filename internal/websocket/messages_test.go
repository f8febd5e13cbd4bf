package websocket

import (
	"testing"
)

func TestMessageValidator_ValidateSpeak(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid speak",
			message: `{
				"type": "speak",
				"text": "hello there",
				"priority": "normal",
				"sample_rate": 16000
			}`,
			wantErr: false,
		},
		{
			name: "missing text",
			message: `{
				"type": "speak",
				"priority": "normal"
			}`,
			wantErr: true,
		},
		{
			name: "invalid priority",
			message: `{
				"type": "speak",
				"text": "hello",
				"priority": "urgent"
			}`,
			wantErr: true,
		},
		{
			name: "invalid sample rate",
			message: `{
				"type": "speak",
				"text": "hello",
				"sample_rate": 100000
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ValidateListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{
		"type": "listening_start",
		"sample_rate": 16000,
		"channels": 1,
		"encoding": "LINEAR16",
		"language": "en-US"
	}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	msg, ok := result.(*ListeningStartMessage)
	if !ok {
		t.Fatalf("Expected *ListeningStartMessage, got %T", result)
	}
	if msg.SampleRate != 16000 || msg.Language != "en-US" {
		t.Errorf("Unexpected fields: %+v", msg)
	}

	// Defaults are allowed; the format falls back server-side.
	if _, err := validator.ValidateMessage([]byte(`{"type": "listening_start"}`)); err != nil {
		t.Errorf("Bare listening_start should validate, got %v", err)
	}

	if _, err := validator.ValidateMessage([]byte(`{"type": "listening_start", "channels": 5}`)); err == nil {
		t.Error("Expected error for invalid channel count")
	}
}

func TestMessageValidator_ValidateInterrupt(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type": "interrupt", "text": "stop now"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	if msg, ok := result.(*InterruptMessage); !ok || msg.Text != "stop now" {
		t.Errorf("Unexpected result: %#v", result)
	}

	if _, err := validator.ValidateMessage([]byte(`{"type": "interrupt"}`)); err == nil {
		t.Error("Expected error for interrupt without text")
	}
}

func TestMessageValidator_ValidateCancel(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type": "cancel", "clear_queue": true}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	if msg, ok := result.(*CancelMessage); !ok || !msg.ClearQueue {
		t.Errorf("Unexpected result: %#v", result)
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type": "ping", "data": "test-ping"}`))
	if err != nil {
		t.Errorf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", result)
	}
	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestMessageValidator_RejectsUnknownType(t *testing.T) {
	validator := NewMessageValidator()

	if _, err := validator.ValidateMessage([]byte(`{"type": "reboot"}`)); err == nil {
		t.Error("Expected error for unknown message type")
	}
	if _, err := validator.ValidateMessage([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestNewBaseMessageStampsIdentity(t *testing.T) {
	msg := NewBaseMessage(MessageTypeSpeakingStart)

	if msg.Type != MessageTypeSpeakingStart {
		t.Errorf("Expected type speaking_start, got %s", msg.Type)
	}
	if msg.MessageID == "" {
		t.Error("Expected a generated message ID")
	}
	if msg.Timestamp == "" {
		t.Error("Expected a timestamp")
	}
}
