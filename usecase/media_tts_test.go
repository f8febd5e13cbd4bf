package usecase

import (
	"errors"
	"testing"

	"github.com/velaterm/vela/domain/entities"
)

func TestQueueBoundThroughServer(t *testing.T) {
	server, _, _ := newTestServer(t)
	depth := server.Config().MaxTtsQueueDepth

	for i := 0; i < depth; i++ {
		if _, err := server.QueueTts(1, "item", entities.PriorityNormal, entities.DefaultAudioFormat()); err != nil {
			t.Fatalf("QueueTts %d failed: %v", i, err)
		}
	}
	if _, err := server.QueueTts(1, "overflow", entities.PriorityNormal, entities.DefaultAudioFormat()); !errors.Is(err, entities.ErrTtsQueueFull) {
		t.Errorf("Expected ErrTtsQueueFull, got %v", err)
	}
	mustHoldInvariants(t, server)

	// One start frees one queued slot.
	if _, err := server.StartTts(1); err != nil {
		t.Fatalf("StartTts failed: %v", err)
	}
	if _, err := server.QueueTts(1, "fits", entities.PriorityNormal, entities.DefaultAudioFormat()); err != nil {
		t.Errorf("QueueTts after start should succeed, got %v", err)
	}
	mustHoldInvariants(t, server)
}

func TestTtsClientNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	var notFound ClientNotFoundError
	if _, err := server.StartTts(42); !errors.As(err, &notFound) {
		t.Errorf("Expected ClientNotFoundError, got %v", err)
	}
	if _, err := server.CompleteTts(42); !errors.As(err, &notFound) {
		t.Errorf("Expected ClientNotFoundError, got %v", err)
	}
	if err := server.PauseTts(42); !errors.As(err, &notFound) {
		t.Errorf("Expected ClientNotFoundError, got %v", err)
	}
	if _, err := server.CancelTts(42, true); !errors.As(err, &notFound) {
		t.Errorf("Expected ClientNotFoundError, got %v", err)
	}
	if _, err := server.InterruptTts(42, "now"); !errors.As(err, &notFound) {
		t.Errorf("Expected ClientNotFoundError, got %v", err)
	}
}

func TestPauseResumeMirrorsStream(t *testing.T) {
	server, _, _ := newTestServer(t)

	if _, err := server.QueueTts(1, "speech", entities.PriorityNormal, entities.DefaultAudioFormat()); err != nil {
		t.Fatalf("QueueTts failed: %v", err)
	}
	if _, err := server.StartTts(1); err != nil {
		t.Fatalf("StartTts failed: %v", err)
	}

	if err := server.PauseTts(1); err != nil {
		t.Fatalf("PauseTts failed: %v", err)
	}
	if server.TtsState(1) != entities.TtsStatePaused {
		t.Errorf("Expected paused, got %s", server.TtsState(1))
	}
	stream, ok := server.OutputStreamForClient(1)
	if !ok || !stream.Paused {
		t.Errorf("Output stream should be paused, got %+v (ok=%v)", stream, ok)
	}
	mustHoldInvariants(t, server)

	if err := server.ResumeTts(1); err != nil {
		t.Fatalf("ResumeTts failed: %v", err)
	}
	stream, _ = server.OutputStreamForClient(1)
	if stream.Paused {
		t.Error("Output stream should not be paused after resume")
	}

	if err := server.PauseTts(1); err != nil {
		t.Fatalf("Second PauseTts failed: %v", err)
	}
	if err := server.PauseTts(1); !errors.Is(err, entities.ErrTtsInvalidState) {
		t.Errorf("Double pause should fail, got %v", err)
	}
}

func TestCancelTtsClosesStream(t *testing.T) {
	server, _, _ := newTestServer(t)

	server.QueueTts(1, "a", entities.PriorityNormal, entities.DefaultAudioFormat())
	server.QueueTts(1, "b", entities.PriorityNormal, entities.DefaultAudioFormat())
	started, err := server.StartTts(1)
	if err != nil {
		t.Fatalf("StartTts failed: %v", err)
	}

	cancelled, err := server.CancelTts(1, false)
	if err != nil {
		t.Fatalf("CancelTts failed: %v", err)
	}
	if cancelled == nil || cancelled.ID != started.ID {
		t.Errorf("Expected cancelled utterance %d, got %+v", started.ID, cancelled)
	}
	if _, ok := server.OutputStreamForClient(1); ok {
		t.Error("Output stream should be closed after cancel")
	}
	if server.TtsQueueLen(1) != 1 {
		t.Errorf("Queue should keep remaining item, got len %d", server.TtsQueueLen(1))
	}
	mustHoldInvariants(t, server)

	// Cancelling an already idle queue is a no-op.
	cancelled, err = server.CancelTts(1, true)
	if err != nil || cancelled != nil {
		t.Errorf("Idle cancel should be a no-op, got (%+v, %v)", cancelled, err)
	}
	if server.TtsQueueLen(1) != 0 {
		t.Errorf("Queue should be drained, got len %d", server.TtsQueueLen(1))
	}
}

func TestInterruptKeepsStreamOpen(t *testing.T) {
	server, _, _ := newTestServer(t)

	server.QueueTts(3, "long announcement", entities.PriorityNormal, entities.DefaultAudioFormat())
	started, err := server.StartTts(3)
	if err != nil {
		t.Fatalf("StartTts failed: %v", err)
	}
	before, ok := server.OutputStreamForClient(3)
	if !ok {
		t.Fatal("Expected output stream while speaking")
	}

	replacement, err := server.InterruptTts(3, "urgent")
	if err != nil {
		t.Fatalf("InterruptTts failed: %v", err)
	}
	if replacement == started.ID {
		t.Error("Interrupt should produce a different utterance id")
	}
	if server.TtsState(3) != entities.TtsStateSpeaking {
		t.Errorf("Expected speaking across interrupt, got %s", server.TtsState(3))
	}
	after, ok := server.OutputStreamForClient(3)
	if !ok || after.ID != before.ID {
		t.Errorf("Output stream should survive interrupt: before %d, after %+v (ok=%v)", before.ID, after, ok)
	}
	mustHoldInvariants(t, server)

	finished, err := server.CompleteTts(3)
	if err != nil {
		t.Fatalf("CompleteTts failed: %v", err)
	}
	if finished.ID != replacement {
		t.Errorf("Expected replacement utterance to finish, got %d", finished.ID)
	}
}

func TestIndependentClientQueues(t *testing.T) {
	server, _, _ := newTestServer(t)

	server.QueueTts(1, "one", entities.PriorityNormal, entities.DefaultAudioFormat())
	server.QueueTts(2, "two", entities.PriorityNormal, entities.DefaultAudioFormat())

	if _, err := server.StartTts(1); err != nil {
		t.Fatalf("StartTts(1) failed: %v", err)
	}
	if _, err := server.StartTts(2); err != nil {
		t.Fatalf("StartTts(2) failed: %v", err)
	}
	if server.TtsState(1) != entities.TtsStateSpeaking || server.TtsState(2) != entities.TtsStateSpeaking {
		t.Error("Both clients should speak independently")
	}
	mustHoldInvariants(t, server)

	if err := server.PauseTts(1); err != nil {
		t.Fatalf("PauseTts failed: %v", err)
	}
	if server.TtsState(2) != entities.TtsStateSpeaking {
		t.Error("Pausing client 1 must not affect client 2")
	}
}
