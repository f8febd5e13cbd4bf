package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Client to server
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeSpeak          MessageType = "speak"
	MessageTypePause          MessageType = "pause"
	MessageTypeResume         MessageType = "resume"
	MessageTypeCancel         MessageType = "cancel"
	MessageTypeInterrupt      MessageType = "interrupt"
	MessageTypePing           MessageType = "ping"

	// Server to client
	MessageTypePartialResult MessageType = "partial_result"
	MessageTypeFinalResult   MessageType = "final_result"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// NewBaseMessage stamps a fresh outbound message header
func NewBaseMessage(messageType MessageType) BaseMessage {
	return BaseMessage{
		Type:      messageType,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.New().String(),
	}
}

// ListeningStartMessage asks the server to open a recognition session fed by
// binary frames on this connection
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty" validate:"omitempty,min=8000,max=48000"`
	Channels   int    `json:"channels,omitempty" validate:"omitempty,min=1,max=2"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage asks the server to finish the recognition session and
// deliver the final result
type ListeningEndMessage struct {
	BaseMessage
}

// SpeakMessage queues text for playback on this connection
type SpeakMessage struct {
	BaseMessage
	Text       string `json:"text" validate:"required"`
	Priority   string `json:"priority,omitempty" validate:"omitempty,oneof=normal high"`
	SampleRate int    `json:"sample_rate,omitempty" validate:"omitempty,min=8000,max=48000"`
	Channels   int    `json:"channels,omitempty" validate:"omitempty,min=1,max=2"`
	Encoding   string `json:"encoding,omitempty"`
}

// PauseMessage pauses the current playback
type PauseMessage struct {
	BaseMessage
}

// ResumeMessage resumes paused playback
type ResumeMessage struct {
	BaseMessage
}

// CancelMessage stops the current playback, optionally draining the queue
type CancelMessage struct {
	BaseMessage
	ClearQueue bool `json:"clear_queue,omitempty"`
}

// InterruptMessage replaces the current playback with urgent text
type InterruptMessage struct {
	BaseMessage
	Text string `json:"text" validate:"required"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PartialResultMessage carries an interim recognition hypothesis
type PartialResultMessage struct {
	BaseMessage
	Text       string `json:"text"`
	Confidence int    `json:"confidence"`
}

// FinalResultMessage carries the final recognition result for an utterance
type FinalResultMessage struct {
	BaseMessage
	Text       string `json:"text"`
	Confidence int    `json:"confidence"`
}

// SpeakingStartMessage announces playback is about to stream binary audio
type SpeakingStartMessage struct {
	BaseMessage
	UtteranceID uint64 `json:"utterance_id"`
	Text        string `json:"text"`
}

// SpeakingEndMessage announces the end of one utterance's audio
type SpeakingEndMessage struct {
	BaseMessage
	UtteranceID uint64 `json:"utterance_id"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_end message: %w", err)
		}
		return &msg, nil

	case MessageTypeSpeak:
		var msg SpeakMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak message: %w", err)
		}
		if err := v.validateSpeak(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePause:
		var msg PauseMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid pause message: %w", err)
		}
		return &msg, nil

	case MessageTypeResume:
		var msg ResumeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid resume message: %w", err)
		}
		return &msg, nil

	case MessageTypeCancel:
		var msg CancelMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid cancel message: %w", err)
		}
		return &msg, nil

	case MessageTypeInterrupt:
		var msg InterruptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid interrupt message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Channels != 0 && (msg.Channels < 1 || msg.Channels > 2) {
		return fmt.Errorf("channels must be 1 or 2")
	}
	return nil
}

func (v *MessageValidator) validateSpeak(msg *SpeakMessage) error {
	if msg.Text == "" {
		return fmt.Errorf("text is required")
	}
	if msg.Priority != "" && msg.Priority != "normal" && msg.Priority != "high" {
		return fmt.Errorf("priority must be one of: normal, high")
	}
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: NewBaseMessage(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: NewBaseMessage(MessageTypePong),
		Data:        data,
	}
}
