package repositories

import (
	"context"

	"github.com/velaterm/vela/domain/entities"
)

// SttProvider abstracts a platform speech recognition engine. The media core
// only drives this fixed capability surface; recognition itself happens
// behind it.
type SttProvider interface {
	// Start begins a recognition session for one utterance
	Start(ctx context.Context, format entities.AudioFormat, language string) error
	// FeedAudio pushes captured audio bytes into the open session
	FeedAudio(data []byte) error
	// GetPartial returns the latest incremental result, if the engine has one
	GetPartial() (text string, confidence int, ok bool)
	// Stop ends the session and returns the final result, if any
	Stop() (text string, confidence int, ok bool, err error)
	// Cancel abandons the session without producing a result
	Cancel()
	// IsVoiceActive reports voice activity when the engine supports VAD; the
	// second return is false when it does not
	IsVoiceActive() (active bool, supported bool)
	// SupportedFormats lists the sample formats the engine accepts
	SupportedFormats() []entities.AudioFormat
	// SupportedLanguages lists BCP-47 language tags the engine recognizes
	SupportedLanguages() []string
}
