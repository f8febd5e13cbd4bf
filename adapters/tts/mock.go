package tts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

// MockProvider is a placeholder synthesis engine for development without API
// credentials. It emits silence sized to a rough speaking rate so playback
// consumers see realistic chunk counts.
type MockProvider struct {
	logger    *zap.Logger
	chunkSize int
}

var _ repositories.TtsProvider = (*MockProvider)(nil)

// NewMockProvider creates a new mock synthesis provider
func NewMockProvider(logger *zap.Logger) *MockProvider {
	return &MockProvider{logger: logger, chunkSize: defaultChunkSize}
}

func (m *MockProvider) SupportedFormats() []entities.AudioFormat {
	return []entities.AudioFormat{entities.DefaultAudioFormat()}
}

func (m *MockProvider) AvailableVoices() []repositories.Voice {
	return []repositories.Voice{
		{ID: "mock-1", Name: "Mock", Language: "en-US"},
	}
}

// Synthesize emits silent PCM at roughly 150 words per minute
func (m *MockProvider) Synthesize(ctx context.Context, text string, format entities.AudioFormat) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	words := len(strings.Fields(text))
	durationMs := words * 400
	if durationMs < 200 {
		durationMs = 200
	}
	// 16-bit samples across all channels.
	totalBytes := format.SampleRate * format.Channels * 2 * durationMs / 1000

	m.logger.Info("Synthesizing mock speech",
		zap.Int("words", words),
		zap.Int("durationMs", durationMs),
		zap.Int("totalBytes", totalBytes))

	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)

		remaining := totalBytes
		for remaining > 0 {
			n := m.chunkSize
			if n > remaining {
				n = remaining
			}
			select {
			case audioChan <- bytes.Repeat([]byte{0}, n):
				remaining -= n
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}
