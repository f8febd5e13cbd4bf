package entities

// StreamDirection tells whether audio flows into the server (capture) or out
// of it (playback)
type StreamDirection string

const (
	StreamInput  StreamDirection = "input"
	StreamOutput StreamDirection = "output"
)

// StreamState represents the lifecycle of one audio transfer
type StreamState string

const (
	StreamStateOpen    StreamState = "open"
	StreamStateClosing StreamState = "closing"
	StreamStateClosed  StreamState = "closed"
)

// AudioStream tracks one directional audio transfer between the server and a
// device or provider. Timestamps are logical milliseconds from the
// orchestrator's clock, so tests can drive time explicitly.
type AudioStream struct {
	ID         StreamID        `json:"id"`
	Client     ClientID        `json:"client"`
	Direction  StreamDirection `json:"direction"`
	Format     AudioFormat     `json:"format"`
	State      StreamState     `json:"state"`
	Paused     bool            `json:"paused"`
	Bytes      uint64          `json:"bytes"`
	OpenedAt   uint64          `json:"opened_at"`
	LastActive uint64          `json:"last_active"`
	ClosedAt   uint64          `json:"closed_at"`
}

// Age returns how long the stream has been open, in logical milliseconds
func (s *AudioStream) Age(now uint64) uint64 {
	if now < s.OpenedAt {
		return 0
	}
	return now - s.OpenedAt
}

// Latency returns logical milliseconds since the last transfer on the stream
func (s *AudioStream) Latency(now uint64) uint64 {
	if now < s.LastActive {
		return 0
	}
	return now - s.LastActive
}

// StreamManager owns every in-flight audio transfer, keyed by StreamID. It
// knows nothing about STT or TTS state; the orchestrator keeps stream
// lifecycle in lockstep with session and queue transitions.
type StreamManager struct {
	streams map[StreamID]*AudioStream
	nextID  StreamID
}

// NewStreamManager creates an empty manager. StreamIDs start at 1 so the
// zero value never names a live stream.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		streams: make(map[StreamID]*AudioStream),
		nextID:  1,
	}
}

// Create opens a new stream for a client. It always succeeds.
func (m *StreamManager) Create(client ClientID, direction StreamDirection, format AudioFormat, now uint64) StreamID {
	id := m.nextID
	m.nextID++
	m.streams[id] = &AudioStream{
		ID:         id,
		Client:     client,
		Direction:  direction,
		Format:     format,
		State:      StreamStateOpen,
		OpenedAt:   now,
		LastActive: now,
	}
	return id
}

// Get looks up a stream. Absence is a normal, checked condition.
func (m *StreamManager) Get(id StreamID) (*AudioStream, bool) {
	s, ok := m.streams[id]
	return s, ok
}

// Close transitions open or closing to closed. Closing an unknown or already
// closed stream is a no-op.
func (m *StreamManager) Close(id StreamID, now uint64) {
	s, ok := m.streams[id]
	if !ok || s.State == StreamStateClosed {
		return
	}
	s.State = StreamStateClosed
	s.Paused = false
	s.ClosedAt = now
}

// BeginClose transitions open to closing, used while an utterance or result
// is still draining
func (m *StreamManager) BeginClose(id StreamID) error {
	s, ok := m.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	if s.State != StreamStateOpen {
		return ErrStreamInvalidState
	}
	s.State = StreamStateClosing
	return nil
}

// Pause marks an output stream paused, mirroring a paused TTS queue
func (m *StreamManager) Pause(id StreamID) error {
	s, ok := m.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	if s.Direction != StreamOutput {
		return ErrStreamWrongDirection
	}
	if s.State != StreamStateOpen {
		return ErrStreamInvalidState
	}
	s.Paused = true
	return nil
}

// Resume clears the paused mark on an output stream
func (m *StreamManager) Resume(id StreamID) error {
	s, ok := m.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	if s.Direction != StreamOutput {
		return ErrStreamWrongDirection
	}
	if s.State != StreamStateOpen {
		return ErrStreamInvalidState
	}
	s.Paused = false
	return nil
}

// RecordTransfer accumulates the byte counter used for latency and
// throughput reporting
func (m *StreamManager) RecordTransfer(id StreamID, bytes int, now uint64) error {
	s, ok := m.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	if s.State == StreamStateClosed {
		return ErrStreamInvalidState
	}
	s.Bytes += uint64(bytes)
	s.LastActive = now
	return nil
}

// CheckTimeouts closes every stream open longer than maxDurationMs and
// returns their IDs. The caller must reconcile STT/TTS state for each
// returned id.
func (m *StreamManager) CheckTimeouts(now, maxDurationMs uint64) []StreamID {
	var timedOut []StreamID
	for id, s := range m.streams {
		if s.State == StreamStateClosed {
			continue
		}
		if s.Age(now) > maxDurationMs {
			s.State = StreamStateClosed
			s.Paused = false
			s.ClosedAt = now
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}

// CleanupClosed garbage-collects closed entries and returns the count
// removed
func (m *StreamManager) CleanupClosed() int {
	removed := 0
	for id, s := range m.streams {
		if s.State == StreamStateClosed {
			delete(m.streams, id)
			removed++
		}
	}
	return removed
}

// CloseAllForClient closes every non-closed stream owned by the client and
// returns the IDs closed
func (m *StreamManager) CloseAllForClient(client ClientID, now uint64) []StreamID {
	var closed []StreamID
	for id, s := range m.streams {
		if s.Client != client || s.State == StreamStateClosed {
			continue
		}
		s.State = StreamStateClosed
		s.Paused = false
		s.ClosedAt = now
		closed = append(closed, id)
	}
	return closed
}

// OutputStreamForClient returns the client's open or closing output stream,
// if any
func (m *StreamManager) OutputStreamForClient(client ClientID) (*AudioStream, bool) {
	for _, s := range m.streams {
		if s.Client == client && s.Direction == StreamOutput && s.State != StreamStateClosed {
			return s, true
		}
	}
	return nil, false
}

// HighLatencyStreams returns every non-closed stream whose time since last
// transfer exceeds maxLatencyMs. Violations are reported, never fatal.
func (m *StreamManager) HighLatencyStreams(now, maxLatencyMs uint64) []*AudioStream {
	var late []*AudioStream
	for _, s := range m.streams {
		if s.State == StreamStateClosed {
			continue
		}
		if s.Latency(now) > maxLatencyMs {
			late = append(late, s)
		}
	}
	return late
}

// OpenStreams returns every stream not yet closed
func (m *StreamManager) OpenStreams() []*AudioStream {
	var open []*AudioStream
	for _, s := range m.streams {
		if s.State != StreamStateClosed {
			open = append(open, s)
		}
	}
	return open
}

// Count returns the number of tracked streams, including closed ones not yet
// cleaned up
func (m *StreamManager) Count() int {
	return len(m.streams)
}
