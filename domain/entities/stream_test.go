package entities

import (
	"errors"
	"testing"
)

func TestStreamManagerCreateAndClose(t *testing.T) {
	m := NewStreamManager()

	id := m.Create(1, StreamInput, DefaultAudioFormat(), 100)
	if id == 0 {
		t.Error("StreamID zero should never name a live stream")
	}

	stream, ok := m.Get(id)
	if !ok {
		t.Fatal("Stream not found after create")
	}
	if stream.State != StreamStateOpen {
		t.Errorf("Expected open state, got %s", stream.State)
	}
	if stream.Client != 1 || stream.Direction != StreamInput {
		t.Errorf("Unexpected stream attributes: %+v", stream)
	}
	if stream.OpenedAt != 100 {
		t.Errorf("Expected opened at 100, got %d", stream.OpenedAt)
	}

	m.Close(id, 200)
	stream, _ = m.Get(id)
	if stream.State != StreamStateClosed {
		t.Errorf("Expected closed state, got %s", stream.State)
	}
	if stream.ClosedAt != 200 {
		t.Errorf("Expected closed at 200, got %d", stream.ClosedAt)
	}

	// Closing again is idempotent and must not move the timestamp.
	m.Close(id, 300)
	stream, _ = m.Get(id)
	if stream.ClosedAt != 200 {
		t.Errorf("Second close moved ClosedAt to %d", stream.ClosedAt)
	}
}

func TestStreamManagerBeginClose(t *testing.T) {
	m := NewStreamManager()
	id := m.Create(1, StreamInput, DefaultAudioFormat(), 0)

	if err := m.BeginClose(id); err != nil {
		t.Fatalf("BeginClose failed: %v", err)
	}
	stream, _ := m.Get(id)
	if stream.State != StreamStateClosing {
		t.Errorf("Expected closing state, got %s", stream.State)
	}

	if err := m.BeginClose(id); !errors.Is(err, ErrStreamInvalidState) {
		t.Errorf("BeginClose on closing stream should fail, got %v", err)
	}

	// Closing finishes from the draining state.
	m.Close(id, 10)
	stream, _ = m.Get(id)
	if stream.State != StreamStateClosed {
		t.Errorf("Expected closed state, got %s", stream.State)
	}
}

func TestStreamManagerPauseResume(t *testing.T) {
	m := NewStreamManager()
	in := m.Create(1, StreamInput, DefaultAudioFormat(), 0)
	out := m.Create(1, StreamOutput, DefaultAudioFormat(), 0)

	if err := m.Pause(in); !errors.Is(err, ErrStreamWrongDirection) {
		t.Errorf("Pause on input stream should fail, got %v", err)
	}
	if err := m.Pause(out); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	stream, _ := m.Get(out)
	if !stream.Paused {
		t.Error("Stream should be paused")
	}
	if err := m.Resume(out); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	stream, _ = m.Get(out)
	if stream.Paused {
		t.Error("Stream should not be paused after resume")
	}

	if err := m.Pause(999); !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("Pause on unknown stream should fail, got %v", err)
	}
}

func TestStreamManagerRecordTransfer(t *testing.T) {
	m := NewStreamManager()
	id := m.Create(1, StreamInput, DefaultAudioFormat(), 0)

	if err := m.RecordTransfer(id, 512, 50); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}
	if err := m.RecordTransfer(id, 256, 80); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}

	stream, _ := m.Get(id)
	if stream.Bytes != 768 {
		t.Errorf("Expected 768 bytes, got %d", stream.Bytes)
	}
	if stream.LastActive != 80 {
		t.Errorf("Expected last active 80, got %d", stream.LastActive)
	}

	m.Close(id, 90)
	if err := m.RecordTransfer(id, 1, 100); !errors.Is(err, ErrStreamInvalidState) {
		t.Errorf("RecordTransfer on closed stream should fail, got %v", err)
	}
}

func TestStreamManagerTimeouts(t *testing.T) {
	m := NewStreamManager()
	old := m.Create(1, StreamInput, DefaultAudioFormat(), 0)
	fresh := m.Create(2, StreamOutput, DefaultAudioFormat(), 25_000)

	timedOut := m.CheckTimeouts(31_000, 30_000)
	if len(timedOut) != 1 || timedOut[0] != old {
		t.Errorf("Expected only stream %d timed out, got %v", old, timedOut)
	}

	stream, _ := m.Get(old)
	if stream.State != StreamStateClosed {
		t.Errorf("Timed out stream should be closed, got %s", stream.State)
	}
	stream, _ = m.Get(fresh)
	if stream.State != StreamStateOpen {
		t.Errorf("Fresh stream should stay open, got %s", stream.State)
	}

	// Nothing left over the limit.
	if again := m.CheckTimeouts(31_000, 30_000); len(again) != 0 {
		t.Errorf("Second scan should find nothing, got %v", again)
	}
}

func TestStreamManagerCleanup(t *testing.T) {
	m := NewStreamManager()
	a := m.Create(1, StreamInput, DefaultAudioFormat(), 0)
	b := m.Create(1, StreamOutput, DefaultAudioFormat(), 0)
	m.Create(2, StreamOutput, DefaultAudioFormat(), 0)

	m.Close(a, 10)
	m.Close(b, 10)

	removed := m.CleanupClosed()
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 remaining stream, got %d", m.Count())
	}
	if _, ok := m.Get(a); ok {
		t.Error("Cleaned stream should be gone")
	}
}

func TestStreamManagerCloseAllForClient(t *testing.T) {
	m := NewStreamManager()
	m.Create(1, StreamInput, DefaultAudioFormat(), 0)
	m.Create(1, StreamOutput, DefaultAudioFormat(), 0)
	other := m.Create(2, StreamOutput, DefaultAudioFormat(), 0)

	closed := m.CloseAllForClient(1, 50)
	if len(closed) != 2 {
		t.Errorf("Expected 2 streams closed, got %d", len(closed))
	}
	stream, _ := m.Get(other)
	if stream.State != StreamStateOpen {
		t.Errorf("Other client's stream should stay open, got %s", stream.State)
	}
}

func TestStreamManagerOutputLookupAndLatency(t *testing.T) {
	m := NewStreamManager()
	m.Create(1, StreamInput, DefaultAudioFormat(), 0)
	out := m.Create(1, StreamOutput, DefaultAudioFormat(), 0)

	stream, ok := m.OutputStreamForClient(1)
	if !ok || stream.ID != out {
		t.Errorf("Expected output stream %d, got %+v (ok=%v)", out, stream, ok)
	}
	if _, ok := m.OutputStreamForClient(2); ok {
		t.Error("Client 2 should have no output stream")
	}

	// Both streams have been silent past the budget.
	late := m.HighLatencyStreams(250, 100)
	if len(late) != 2 {
		t.Errorf("Expected 2 high-latency streams, got %d", len(late))
	}

	// A transfer resets the latency clock for one of them.
	if err := m.RecordTransfer(out, 64, 250); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}
	late = m.HighLatencyStreams(300, 100)
	if len(late) != 1 {
		t.Errorf("Expected 1 high-latency stream after transfer, got %d", len(late))
	}
}
