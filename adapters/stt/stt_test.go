package stt_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/velaterm/vela/adapters/stt"
	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

var _ repositories.SttProvider = &stt.GoogleProvider{}

func TestMockProviderLifecycle(t *testing.T) {
	provider := stt.NewMockProvider(zap.NewNop())

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "en-US"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "en-US"); err == nil {
		t.Error("Second Start should fail while a session is open")
	}

	if err := provider.FeedAudio(make([]byte, 2000)); err != nil {
		t.Fatalf("FeedAudio failed: %v", err)
	}
	if _, _, ok := provider.GetPartial(); !ok {
		t.Error("Expected a partial after feeding audio")
	}
	if active, supported := provider.IsVoiceActive(); !supported || !active {
		t.Errorf("Expected voice activity, got active=%v supported=%v", active, supported)
	}

	text, confidence, ok, err := provider.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !ok || text == "" {
		t.Errorf("Expected a final transcript, got %q (ok=%v)", text, ok)
	}
	if confidence <= 0 || confidence > 100 {
		t.Errorf("Confidence out of range: %d", confidence)
	}

	if err := provider.FeedAudio([]byte("late")); err == nil {
		t.Error("FeedAudio after Stop should fail")
	}
}

func TestMockProviderStopWithoutAudio(t *testing.T) {
	provider := stt.NewMockProvider(zap.NewNop())

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "en-US"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, _, ok, err := provider.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if ok {
		t.Error("Session without audio should report no result")
	}
}

func TestMockProviderCancelReopens(t *testing.T) {
	provider := stt.NewMockProvider(zap.NewNop())

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "en-US"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	provider.Cancel()
	provider.Cancel()

	if err := provider.Start(context.Background(), entities.DefaultAudioFormat(), "en-US"); err != nil {
		t.Errorf("Start after Cancel should succeed, got %v", err)
	}
}
