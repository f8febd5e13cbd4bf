package usecase

import (
	"errors"
	"fmt"

	"github.com/velaterm/vela/domain/entities"
)

// VerifyInvariants checks every hard consistency condition against current
// state and returns the violations joined, or nil when all hold. The latency
// bound is soft and reported separately by VerifyLatencyBounds. Intended for
// test harnesses and debug assertions, not the hot path.
func (s *MediaServer) VerifyInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(
		s.verifySingleActiveSessionLocked(),
		s.verifyQueueBoundsLocked(),
		s.verifyStreamOwnershipLocked(),
		s.verifyNoOrphanedProcessingLocked(),
		s.verifySpeakingHasStreamLocked(),
		s.verifyIdleHasNoClientLocked(),
	)
}

// VerifySingleActiveSession checks that a non-idle session records exactly
// one owning client. Exclusivity across clients holds by construction: there
// is only one slot.
func (s *MediaServer) VerifySingleActiveSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifySingleActiveSessionLocked()
}

func (s *MediaServer) verifySingleActiveSessionLocked() error {
	if s.stt.State() == entities.SttStateIdle {
		return nil
	}
	if _, ok := s.stt.ActiveClient(); !ok {
		return InvariantViolationError{
			Check:  "single-active-session",
			Detail: fmt.Sprintf("session is %s with no recorded client", s.stt.State()),
		}
	}
	return nil
}

// VerifyQueueBounds checks that no TTS queue exceeds the configured depth
func (s *MediaServer) VerifyQueueBounds() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyQueueBoundsLocked()
}

func (s *MediaServer) verifyQueueBoundsLocked() error {
	for _, q := range s.tts.Queues() {
		if q.Len() > s.config.MaxTtsQueueDepth {
			return InvariantViolationError{
				Check: "queue-bound",
				Detail: fmt.Sprintf("client %d queue depth %d exceeds %d",
					q.Client(), q.Len(), s.config.MaxTtsQueueDepth),
			}
		}
	}
	return nil
}

// VerifyStreamOwnership checks that every live stream belongs to a client
// with an active STT or TTS state
func (s *MediaServer) VerifyStreamOwnership() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyStreamOwnershipLocked()
}

func (s *MediaServer) verifyStreamOwnershipLocked() error {
	for _, stream := range s.streams.OpenStreams() {
		switch stream.Direction {
		case entities.StreamInput:
			active, ok := s.stt.ActiveClient()
			if !ok || active != stream.Client {
				return InvariantViolationError{
					Check: "stream-ownership",
					Detail: fmt.Sprintf("input stream %d owned by client %d without an active session",
						stream.ID, stream.Client),
				}
			}
		case entities.StreamOutput:
			q, ok := s.tts.Get(stream.Client)
			if !ok || q.State() == entities.TtsStateIdle {
				return InvariantViolationError{
					Check: "stream-ownership",
					Detail: fmt.Sprintf("output stream %d owned by client %d without active playback",
						stream.ID, stream.Client),
				}
			}
		}
	}
	return nil
}

// VerifyLatencyBounds reports streams over the latency budget. This bound is
// soft: violations are returned for reporting, never treated as corruption.
func (s *MediaServer) VerifyLatencyBounds() []entities.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()

	late := s.streams.HighLatencyStreams(s.clock, s.config.MaxLatencyMs)
	ids := make([]entities.StreamID, 0, len(late))
	for _, stream := range late {
		ids = append(ids, stream.ID)
	}
	return ids
}

// VerifyNoOrphanedProcessing checks that a processing session still has its
// draining stream, so a result, cancel, or error can always reconcile it
func (s *MediaServer) VerifyNoOrphanedProcessing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyNoOrphanedProcessingLocked()
}

func (s *MediaServer) verifyNoOrphanedProcessingLocked() error {
	if s.stt.State() != entities.SttStateProcessing {
		return nil
	}
	stream, ok := s.stt.Stream()
	if !ok {
		return InvariantViolationError{
			Check:  "no-orphaned-processing",
			Detail: "session is processing with no recorded stream",
		}
	}
	if tracked, exists := s.streams.Get(stream); !exists || tracked.State == entities.StreamStateClosed {
		return InvariantViolationError{
			Check:  "no-orphaned-processing",
			Detail: fmt.Sprintf("session is processing but stream %d is gone", stream),
		}
	}
	return nil
}

// VerifySpeakingHasStream checks that every speaking client has a live
// output stream
func (s *MediaServer) VerifySpeakingHasStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifySpeakingHasStreamLocked()
}

func (s *MediaServer) verifySpeakingHasStreamLocked() error {
	for _, q := range s.tts.Queues() {
		if q.State() != entities.TtsStateSpeaking {
			continue
		}
		if _, ok := s.streams.OutputStreamForClient(q.Client()); !ok {
			return InvariantViolationError{
				Check:  "speaking-has-stream",
				Detail: fmt.Sprintf("client %d is speaking with no open output stream", q.Client()),
			}
		}
	}
	return nil
}

// VerifyIdleHasNoClient checks that an idle session records no client
func (s *MediaServer) VerifyIdleHasNoClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyIdleHasNoClientLocked()
}

func (s *MediaServer) verifyIdleHasNoClientLocked() error {
	if s.stt.State() != entities.SttStateIdle {
		return nil
	}
	if client, ok := s.stt.ActiveClient(); ok {
		return InvariantViolationError{
			Check:  "idle-has-no-client",
			Detail: fmt.Sprintf("session is idle but still records client %d", client),
		}
	}
	return nil
}
