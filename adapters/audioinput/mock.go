package audioinput

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

// MockProvider simulates a capture device by delivering silent PCM frames to
// the callback on a fixed cadence. Useful for development and end-to-end runs
// without real hardware.
type MockProvider struct {
	logger  *zap.Logger
	frameMs int

	mu        sync.Mutex
	capturing bool
	stop      chan struct{}
	done      chan struct{}
}

var _ repositories.AudioInputProvider = (*MockProvider)(nil)

// NewMockProvider creates a capture provider emitting 20ms frames
func NewMockProvider(logger *zap.Logger) *MockProvider {
	return &MockProvider{logger: logger, frameMs: 20}
}

// Start spawns the frame ticker. Capture runs until Stop or context cancel.
func (m *MockProvider) Start(ctx context.Context, format entities.AudioFormat, device string, callback repositories.AudioCaptureFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capturing {
		return fmt.Errorf("capture already running")
	}
	if callback == nil {
		return fmt.Errorf("capture callback is required")
	}

	frameBytes := format.SampleRate * format.Channels * 2 * m.frameMs / 1000
	stop := make(chan struct{})
	done := make(chan struct{})
	m.capturing = true
	m.stop = stop
	m.done = done

	m.logger.Info("Mock audio capture started",
		zap.String("device", device),
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("frameBytes", frameBytes))

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(m.frameMs) * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback(make([]byte, frameBytes))
			case <-stop:
				return
			case <-ctx.Done():
				m.mu.Lock()
				m.capturing = false
				m.mu.Unlock()
				return
			}
		}
	}()
	return nil
}

// Stop halts the ticker and waits for the delivery goroutine to exit, so no
// callback fires after it returns
func (m *MockProvider) Stop() error {
	m.mu.Lock()
	if !m.capturing {
		m.mu.Unlock()
		return nil
	}
	m.capturing = false
	stop := m.stop
	done := m.done
	m.mu.Unlock()

	close(stop)
	<-done
	m.logger.Info("Mock audio capture stopped")
	return nil
}

func (m *MockProvider) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}
