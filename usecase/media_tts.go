package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
)

// QueueTts appends an utterance to the client's queue, creating the queue on
// first use. High priority inserts ahead of queued normal items. Fails
// immediately with ErrTtsQueueFull at the depth bound; backpressure is pushed
// to the caller, never absorbed by blocking.
func (s *MediaServer) QueueTts(client entities.ClientID, text string, priority entities.Priority, format entities.AudioFormat) (entities.UtteranceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.tts.Queue(client).Queue(text, priority, format)
	if err != nil {
		return 0, fmt.Errorf("queue tts for client %d: %w", client, err)
	}
	s.observer.UtteranceQueued(priority)

	s.logger.Info("TTS utterance queued",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("utteranceID", uint64(id)),
		zap.String("priority", string(priority)))
	return id, nil
}

// StartTts opens an output stream and begins speaking the head of the
// client's queue. The stream is created first and closed again if the queue
// transition fails, so a speaking client always has an open output stream.
func (s *MediaServer) StartTts(client entities.ClientID) (entities.TtsUtterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return entities.TtsUtterance{}, ClientNotFoundError{Client: client}
	}

	format := entities.DefaultAudioFormat()
	if next, hasNext := q.Peek(); hasNext {
		format = next.Format
	}
	stream := s.streams.Create(client, entities.StreamOutput, format, s.clock)
	utterance, err := q.Start(stream)
	if err != nil {
		s.streams.Close(stream, s.clock)
		return entities.TtsUtterance{}, fmt.Errorf("start tts for client %d: %w", client, err)
	}
	s.observer.StreamOpened(entities.StreamOutput)

	s.logger.Info("TTS playback started",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("utteranceID", uint64(utterance.ID)),
		zap.Uint64("streamID", uint64(stream)))
	return utterance, nil
}

// CompleteTts finishes the current utterance and closes its output stream
func (s *MediaServer) CompleteTts(client entities.ClientID) (entities.TtsUtterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return entities.TtsUtterance{}, ClientNotFoundError{Client: client}
	}
	stream, hadStream := q.Stream()
	utterance, err := q.Complete()
	if err != nil {
		return entities.TtsUtterance{}, fmt.Errorf("complete tts for client %d: %w", client, err)
	}
	if hadStream {
		s.closeStreamLocked(stream)
	}
	s.observer.UtteranceFinished()

	s.logger.Info("TTS playback completed",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("utteranceID", uint64(utterance.ID)))
	return utterance, nil
}

// PauseTts pauses playback, marking the output stream paused in lockstep
func (s *MediaServer) PauseTts(client entities.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return ClientNotFoundError{Client: client}
	}
	if err := q.Pause(); err != nil {
		return fmt.Errorf("pause tts for client %d: %w", client, err)
	}
	if stream, hasStream := q.Stream(); hasStream {
		if err := s.streams.Pause(stream); err != nil {
			s.logger.Warn("Failed to pause output stream",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}
	return nil
}

// ResumeTts resumes paused playback and its output stream
func (s *MediaServer) ResumeTts(client entities.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return ClientNotFoundError{Client: client}
	}
	if err := q.Resume(); err != nil {
		return fmt.Errorf("resume tts for client %d: %w", client, err)
	}
	if stream, hasStream := q.Stream(); hasStream {
		if err := s.streams.Resume(stream); err != nil {
			s.logger.Warn("Failed to resume output stream",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}
	return nil
}

// CancelTts stops the current utterance, closing its output stream, and
// optionally drains the rest of the queue. Cancelling an idle queue is a
// no-op, so error-branch cleanup can always call it.
func (s *MediaServer) CancelTts(client entities.ClientID, clearQueue bool) (*entities.TtsUtterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return nil, ClientNotFoundError{Client: client}
	}
	stream, hadStream := q.Stream()
	cancelled := q.Cancel(clearQueue)
	if hadStream {
		s.closeStreamLocked(stream)
	}
	if cancelled != nil {
		s.logger.Info("TTS playback cancelled",
			zap.Uint64("clientID", uint64(client)),
			zap.Uint64("utteranceID", uint64(cancelled.ID)),
			zap.Bool("queueCleared", clearQueue))
	}
	return cancelled, nil
}

// InterruptTts atomically replaces the in-flight utterance with a new
// high-priority one. The output stream stays open across the preemption; the
// queue never passes through idle.
func (s *MediaServer) InterruptTts(client entities.ClientID, text string) (entities.UtteranceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.tts.Get(client)
	if !ok {
		return 0, ClientNotFoundError{Client: client}
	}
	format := entities.DefaultAudioFormat()
	if current, hasCurrent := q.Current(); hasCurrent {
		format = current.Format
	}
	id, err := q.Interrupt(text, format)
	if err != nil {
		return 0, fmt.Errorf("interrupt tts for client %d: %w", client, err)
	}
	s.observer.UtteranceQueued(entities.PriorityHigh)

	s.logger.Info("TTS playback interrupted",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("utteranceID", uint64(id)))
	return id, nil
}
