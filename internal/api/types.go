package api

import (
	"time"

	"github.com/velaterm/vela/domain/entities"
)

// ClientAuthRequest represents the request payload for client authentication
type ClientAuthRequest struct {
	ClientID  uint64 `json:"client_id" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=agent terminal"`
	AccessKey string `json:"access_key"`
}

// ClientAuthResponse represents the response payload for client authentication
type ClientAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  uint64    `json:"client_id"`
}

// MediaStateResponse summarizes the media server's current state
type MediaStateResponse struct {
	Clock            uint64  `json:"clock_ms"`
	SttState         string  `json:"stt_state"`
	SttClient        *uint64 `json:"stt_client,omitempty"`
	OpenStreams      int     `json:"open_streams"`
	ConnectedClients int     `json:"connected_clients"`
}

// StreamsResponse lists the currently open audio streams
type StreamsResponse struct {
	Streams []entities.AudioStream `json:"streams"`
}

// InvariantsResponse reports the media server's consistency checks
type InvariantsResponse struct {
	Healthy    bool     `json:"healthy"`
	Violations []string `json:"violations,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
