package audioinput

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
)

func TestMockCaptureDeliversFrames(t *testing.T) {
	provider := NewMockProvider(zap.NewNop())

	var mu sync.Mutex
	frames := 0
	err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "default", func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		if len(data) == 0 {
			t.Error("Received empty frame")
		}
		frames++
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !provider.IsCapturing() {
		t.Error("Expected IsCapturing true after Start")
	}

	time.Sleep(100 * time.Millisecond)
	if err := provider.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	mu.Lock()
	captured := frames
	mu.Unlock()
	if captured == 0 {
		t.Error("Expected at least one captured frame")
	}
	if provider.IsCapturing() {
		t.Error("Expected IsCapturing false after Stop")
	}

	// No frames delivered once Stop has returned.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if frames != captured {
		t.Errorf("Frames delivered after Stop: %d -> %d", captured, frames)
	}
	mu.Unlock()
}

func TestMockCaptureRejectsDoubleStart(t *testing.T) {
	provider := NewMockProvider(zap.NewNop())

	noop := func([]byte) {}
	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "default", noop); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer provider.Stop()

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "default", noop); err == nil {
		t.Error("Second Start should fail while capturing")
	}
	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "default", nil); err == nil {
		t.Error("Start with nil callback should fail")
	}
}

func TestMockCaptureStopIdempotent(t *testing.T) {
	provider := NewMockProvider(zap.NewNop())

	if err := provider.Stop(); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "default", func([]byte) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := provider.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := provider.Stop(); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}
}
