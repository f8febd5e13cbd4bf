package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

// MockProvider is a placeholder recognition engine for development without
// cloud credentials. It transcribes by accumulated audio size, so clients can
// exercise the full session lifecycle deterministically.
type MockProvider struct {
	logger *zap.Logger

	mu        sync.Mutex
	active    bool
	byteCount int
}

// NewMockProvider creates a new mock speech recognition provider
func NewMockProvider(logger *zap.Logger) repositories.SttProvider {
	return &MockProvider{logger: logger}
}

func (m *MockProvider) Start(ctx context.Context, format entities.AudioFormat, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return fmt.Errorf("recognition session already open")
	}
	m.active = true
	m.byteCount = 0

	m.logger.Info("Initializing mock recognition session",
		zap.Int("sampleRate", format.SampleRate),
		zap.String("encoding", format.Encoding),
		zap.String("language", language))
	return nil
}

func (m *MockProvider) FeedAudio(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return fmt.Errorf("no open recognition session")
	}
	m.byteCount += len(data)
	return nil
}

func (m *MockProvider) GetPartial() (string, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || m.byteCount == 0 {
		return "", 0, false
	}
	// Partials show the transcript building up word by word.
	words := strings.Fields(m.transcriptionLocked())
	cut := 1 + m.byteCount%len(words)
	return strings.Join(words[:cut], " "), 60, true
}

func (m *MockProvider) Stop() (string, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return "", 0, false, fmt.Errorf("no open recognition session")
	}
	m.active = false

	if m.byteCount == 0 {
		m.logger.Info("Mock recognition session ended without audio")
		return "", 0, false, nil
	}
	text := m.transcriptionLocked()
	m.logger.Info("Mock recognition session ended", zap.String("result", text))
	return text, 95, true, nil
}

func (m *MockProvider) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.byteCount = 0
}

// IsVoiceActive treats any fed audio as voice
func (m *MockProvider) IsVoiceActive() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.byteCount > 0, true
}

func (m *MockProvider) SupportedFormats() []entities.AudioFormat {
	return []entities.AudioFormat{entities.DefaultAudioFormat()}
}

func (m *MockProvider) SupportedLanguages() []string {
	return []string{"en-US", "id-ID"}
}

// transcriptionLocked picks a canned transcript by cumulative audio size
func (m *MockProvider) transcriptionLocked() string {
	switch {
	case m.byteCount > 10000:
		return "open the project directory and run the test suite again"
	case m.byteCount > 5000:
		return "show me the latest build results"
	case m.byteCount > 1000:
		return "list open sessions"
	default:
		return "hello"
	}
}
