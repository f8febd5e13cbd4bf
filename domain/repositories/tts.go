package repositories

import (
	"context"

	"github.com/velaterm/vela/domain/entities"
)

// Voice describes one synthesis voice offered by a TTS engine
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// TtsProvider abstracts a platform speech synthesis engine
type TtsProvider interface {
	// SupportedFormats lists the sample formats the engine can produce
	SupportedFormats() []entities.AudioFormat
	// AvailableVoices lists the voices the engine offers
	AvailableVoices() []Voice
	// Synthesize streams synthesized audio for the text. The channel is
	// closed when synthesis finishes.
	Synthesize(ctx context.Context, text string, format entities.AudioFormat) (<-chan []byte, error)
}
