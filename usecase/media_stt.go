package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
)

// StartStt opens an input stream and claims the recognition slot for the
// client. The caller feeds audio and delivers the final text itself; no
// provider is involved. On session failure the stream is closed again before
// the error surfaces.
func (s *MediaServer) StartStt(client entities.ClientID, format entities.AudioFormat) (entities.StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams.Create(client, entities.StreamInput, format, s.clock)
	if err := s.stt.Start(client, stream); err != nil {
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("start stt for client %d: %w", client, err)
	}
	s.observer.StreamOpened(entities.StreamInput)

	s.logger.Info("STT session started",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("streamID", uint64(stream)))
	return stream, nil
}

// StartSttStreaming additionally opens a recognition session on the STT
// provider, so audio fed through SttFeedAudio is transcribed by the engine.
// Any failure unwinds every prior step before returning.
func (s *MediaServer) StartSttStreaming(ctx context.Context, client entities.ClientID, format entities.AudioFormat) (entities.StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sttProvider == nil {
		return 0, ErrNoSttProvider
	}

	stream := s.streams.Create(client, entities.StreamInput, format, s.clock)
	if err := s.stt.Start(client, stream); err != nil {
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("start stt for client %d: %w", client, err)
	}
	if err := s.sttProvider.Start(ctx, format, s.config.SttLanguage); err != nil {
		s.stt.Cancel()
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("stt provider start: %w", err)
	}
	s.providerActive = true
	s.observer.StreamOpened(entities.StreamInput)

	s.logger.Info("Streaming STT session started",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("streamID", uint64(stream)),
		zap.String("language", s.config.SttLanguage))
	return stream, nil
}

// StartSttWithMicrophone starts a streaming session and begins platform
// audio capture feeding the shared buffer. Failure at any step unwinds all
// prior steps, so the server never observes a half-started session.
func (s *MediaServer) StartSttWithMicrophone(ctx context.Context, client entities.ClientID, format entities.AudioFormat, device string) (entities.StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sttProvider == nil {
		return 0, ErrNoSttProvider
	}
	if s.audioInput == nil {
		return 0, ErrNoAudioInput
	}

	stream := s.streams.Create(client, entities.StreamInput, format, s.clock)
	if err := s.stt.Start(client, stream); err != nil {
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("start stt for client %d: %w", client, err)
	}
	if err := s.sttProvider.Start(ctx, format, s.config.SttLanguage); err != nil {
		s.stt.Cancel()
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("stt provider start: %w", err)
	}
	if err := s.audioInput.Start(ctx, format, device, s.appendCapture); err != nil {
		s.sttProvider.Cancel()
		s.stt.Cancel()
		s.streams.Close(stream, s.clock)
		return 0, fmt.Errorf("audio capture start: %w", err)
	}
	s.providerActive = true
	s.capturing = true
	s.observer.StreamOpened(entities.StreamInput)

	s.logger.Info("Microphone STT session started",
		zap.Uint64("clientID", uint64(client)),
		zap.Uint64("streamID", uint64(stream)),
		zap.String("device", device))
	return stream, nil
}

// appendCapture is the audio capture callback. It may run on a
// platform-owned thread; it only touches the capture buffer, under its own
// lock.
func (s *MediaServer) appendCapture(data []byte) {
	s.captureMu.Lock()
	s.captureBuf = append(s.captureBuf, data...)
	s.captureMu.Unlock()
}

// ProcessAudio drains the shared capture buffer, feeds it to the STT
// provider, and surfaces a partial result if the engine has one. Returns
// (nil, nil) when the buffer is empty; this is the designed poll point, with
// no blocking wait inside the core.
func (s *MediaServer) ProcessAudio() (*entities.SttResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processAudioLocked()
}

func (s *MediaServer) processAudioLocked() (*entities.SttResult, error) {
	s.captureMu.Lock()
	buffered := s.captureBuf
	s.captureBuf = nil
	s.captureMu.Unlock()

	if len(buffered) == 0 {
		return nil, nil
	}
	if !s.providerActive {
		return nil, ErrNoSttProvider
	}
	if s.stt.State() != entities.SttStateListening {
		return nil, fmt.Errorf("process audio: %w", entities.ErrSttInvalidState)
	}

	if stream, ok := s.stt.Stream(); ok {
		if err := s.streams.RecordTransfer(stream, len(buffered), s.clock); err != nil {
			s.logger.Warn("Failed to record capture transfer",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}

	if err := s.sttProvider.FeedAudio(buffered); err != nil {
		return nil, fmt.Errorf("stt provider feed: %w", err)
	}

	if text, confidence, ok := s.sttProvider.GetPartial(); ok {
		if err := s.stt.UpdatePartial(text, confidence); err != nil {
			return nil, fmt.Errorf("update partial: %w", err)
		}
		client, _ := s.stt.ActiveClient()
		return &entities.SttResult{
			Client:     client,
			Text:       text,
			Confidence: confidence,
			IsFinal:    false,
		}, nil
	}
	return nil, nil
}

// SttFeedAudio pushes caller-supplied audio bytes into the open session,
// updating the stream byte counter and forwarding to the provider when one
// is active. Valid only while listening.
func (s *MediaServer) SttFeedAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stt.State() != entities.SttStateListening {
		return fmt.Errorf("feed audio: %w", entities.ErrSttInvalidState)
	}
	if stream, ok := s.stt.Stream(); ok {
		if err := s.streams.RecordTransfer(stream, len(data), s.clock); err != nil {
			s.logger.Warn("Failed to record audio transfer",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}
	if s.providerActive {
		if err := s.sttProvider.FeedAudio(data); err != nil {
			return fmt.Errorf("stt provider feed: %w", err)
		}
	}
	return nil
}

// SttUpdatePartial records an incremental recognition result for UI feedback
func (s *MediaServer) SttUpdatePartial(text string, confidence int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stt.UpdatePartial(text, confidence)
}

// SttPartial returns the session's latest interim hypothesis, refreshing it
// from the provider first when a recognition engine is attached. Used by
// transports that feed audio directly rather than through the capture buffer.
func (s *MediaServer) SttPartial() (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stt.State() != entities.SttStateListening {
		return "", 0, false
	}
	if s.providerActive {
		if text, confidence, ok := s.sttProvider.GetPartial(); ok {
			if err := s.stt.UpdatePartial(text, confidence); err == nil {
				return text, confidence, true
			}
		}
	}
	text, confidence := s.stt.Partial()
	return text, confidence, text != ""
}

// SttEndUtterance moves the session from listening to processing and marks
// the input stream as draining
func (s *MediaServer) SttEndUtterance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stt.EndUtterance(); err != nil {
		return err
	}
	if stream, ok := s.stt.Stream(); ok {
		if err := s.streams.BeginClose(stream); err != nil {
			s.logger.Warn("Failed to begin stream close",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}
	return nil
}

// SttDeliverResult finalizes the utterance, closes the input stream, and
// buffers the result for the client to consume
func (s *MediaServer) SttDeliverResult(text string, confidence int) (entities.SttResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliverResultLocked(text, confidence)
}

func (s *MediaServer) deliverResultLocked(text string, confidence int) (entities.SttResult, error) {
	stream, hadStream := s.stt.Stream()
	result, err := s.stt.DeliverResult(text, confidence)
	if err != nil {
		return entities.SttResult{}, err
	}
	if hadStream {
		s.closeStreamLocked(stream)
	}
	s.pendingResults[result.Client] = append(s.pendingResults[result.Client], result)
	s.observer.ResultDelivered()

	s.logger.Info("STT result delivered",
		zap.Uint64("clientID", uint64(result.Client)),
		zap.Int("confidence", result.Confidence),
		zap.Int("textLen", len(result.Text)))
	return result, nil
}

// StopSttStreaming ends a streaming session: flushes buffered audio, stops
// the provider for its final result, walks the session through end-utterance
// and delivery, and buffers the result. The session is cancelled even when
// the provider reports an error, so no processing state is left behind.
func (s *MediaServer) StopSttStreaming() (entities.SttResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopStreamingLocked()
}

// StopSttWithMicrophone stops platform capture, then finishes the streaming
// session the same way StopSttStreaming does
func (s *MediaServer) StopSttWithMicrophone() (entities.SttResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing {
		if err := s.audioInput.Stop(); err != nil {
			s.logger.Warn("Audio capture stop failed", zap.Error(err))
		}
		s.capturing = false
	}
	return s.stopStreamingLocked()
}

func (s *MediaServer) stopStreamingLocked() (entities.SttResult, error) {
	if !s.providerActive {
		s.cancelSttLocked()
		return entities.SttResult{}, ErrNoSttProvider
	}

	// Flush whatever the capture callback appended since the last poll.
	if _, err := s.processAudioLocked(); err != nil {
		s.logger.Warn("Flush before stop failed", zap.Error(err))
	}

	text, confidence, ok, err := s.sttProvider.Stop()
	s.providerActive = false
	if err != nil {
		s.cancelSttLocked()
		return entities.SttResult{}, fmt.Errorf("stt provider stop: %w", err)
	}
	if !ok {
		// Engine heard nothing final; fall back to the last partial.
		text, confidence = s.stt.Partial()
	}

	if err := s.stt.EndUtterance(); err != nil {
		s.cancelSttLocked()
		return entities.SttResult{}, err
	}
	if stream, hasStream := s.stt.Stream(); hasStream {
		if err := s.streams.BeginClose(stream); err != nil {
			s.logger.Warn("Failed to begin stream close",
				zap.Uint64("streamID", uint64(stream)), zap.Error(err))
		}
	}
	return s.deliverResultLocked(text, confidence)
}

// SttCancel returns the session to idle from any state and closes its
// stream, reporting the client that held the slot. Safe to call repeatedly.
func (s *MediaServer) SttCancel() (entities.ClientID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelSttLocked()
}

// SttFail has the same contract as SttCancel; it is the path used when the
// provider reports a fault
func (s *MediaServer) SttFail() (entities.ClientID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, had := s.cancelSttLocked()
	if had {
		s.logger.Warn("STT session failed", zap.Uint64("clientID", uint64(client)))
	}
	return client, had
}

func (s *MediaServer) cancelSttLocked() (entities.ClientID, bool) {
	if s.capturing {
		if err := s.audioInput.Stop(); err != nil {
			s.logger.Warn("Audio capture stop failed", zap.Error(err))
		}
		s.capturing = false
	}
	if s.providerActive {
		s.sttProvider.Cancel()
		s.providerActive = false
	}
	s.captureMu.Lock()
	s.captureBuf = nil
	s.captureMu.Unlock()

	stream, hadStream := s.stt.Stream()
	client, had := s.stt.Cancel()
	if hadStream {
		s.closeStreamLocked(stream)
	}
	if had {
		s.logger.Info("STT session cancelled", zap.Uint64("clientID", uint64(client)))
	}
	return client, had
}
