package usecase

import (
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

// MediaServerConfig holds the soft limits enforced by the media subsystems.
// None of them are renegotiable at runtime.
type MediaServerConfig struct {
	MaxTtsQueueDepth    int
	MaxStreamDurationMs uint64
	MaxLatencyMs        uint64
	SttLanguage         string
}

// DefaultConfig returns the stock limits: queues of 10, streams capped at
// 30 seconds, 100 ms latency budget.
func DefaultConfig() MediaServerConfig {
	return MediaServerConfig{
		MaxTtsQueueDepth:    10,
		MaxStreamDurationMs: 30_000,
		MaxLatencyMs:        100,
		SttLanguage:         "en-US",
	}
}

// ConfigFromEnv builds a config from VELA_* environment variables, falling
// back to defaults for anything unset or unparsable
func ConfigFromEnv() MediaServerConfig {
	config := DefaultConfig()
	if v, err := strconv.Atoi(os.Getenv("VELA_MAX_TTS_QUEUE_DEPTH")); err == nil && v > 0 {
		config.MaxTtsQueueDepth = v
	}
	if v, err := strconv.ParseUint(os.Getenv("VELA_MAX_STREAM_DURATION_MS"), 10, 64); err == nil && v > 0 {
		config.MaxStreamDurationMs = v
	}
	if v, err := strconv.ParseUint(os.Getenv("VELA_MAX_LATENCY_MS"), 10, 64); err == nil && v > 0 {
		config.MaxLatencyMs = v
	}
	if v := os.Getenv("VELA_STT_LANGUAGE"); v != "" {
		config.SttLanguage = v
	}
	return config
}

// MediaServer coordinates voice input/output for terminal clients: the
// single STT session, per-client TTS queues, and the audio streams carrying
// bytes between them and devices. It is the only component that opens or
// closes streams relative to session and queue transitions; no subsystem
// sees enough state to keep the cross-cutting invariants alone.
//
// Every public method takes exclusive access and runs to completion. The one
// piece of true concurrency is the audio capture callback, which appends to
// a dedicated mutex-protected buffer that ProcessAudio drains.
type MediaServer struct {
	mu sync.Mutex

	config MediaServerConfig
	logger *zap.Logger

	stt     *entities.SttSession
	tts     *entities.TtsManager
	streams *entities.StreamManager

	sttProvider repositories.SttProvider
	ttsProvider repositories.TtsProvider
	audioInput  repositories.AudioInputProvider

	// providerActive tracks whether the STT provider has an open
	// recognition session; capturing tracks whether the input device is
	// delivering audio. Both are torn down by every cancel path.
	providerActive bool
	capturing      bool

	// Logical clock in milliseconds, advanced only by Tick. Stream
	// timestamps use it so tests drive time explicitly.
	clock uint64

	pendingResults map[entities.ClientID][]entities.SttResult

	captureMu  sync.Mutex
	captureBuf []byte

	observer MediaObserver
}

// NewMediaServer creates a media server. Any of the three providers may be
// nil; orchestration paths needing a missing capability fail with the
// matching ErrNo* error.
func NewMediaServer(
	config MediaServerConfig,
	stt repositories.SttProvider,
	tts repositories.TtsProvider,
	input repositories.AudioInputProvider,
	logger *zap.Logger,
) *MediaServer {
	return &MediaServer{
		config:         config,
		logger:         logger,
		stt:            entities.NewSttSession(),
		tts:            entities.NewTtsManager(config.MaxTtsQueueDepth),
		streams:        entities.NewStreamManager(),
		sttProvider:    stt,
		ttsProvider:    tts,
		audioInput:     input,
		pendingResults: make(map[entities.ClientID][]entities.SttResult),
		observer:       nopObserver{},
	}
}

// SetObserver installs a metrics sink. Must be called before the server is
// shared across goroutines.
func (s *MediaServer) SetObserver(observer MediaObserver) {
	s.observer = observer
}

// Config returns the limits the server was built with
func (s *MediaServer) Config() MediaServerConfig {
	return s.config
}

// Tick advances the logical clock by elapsedMs and returns the new clock
// value. There are no internal timers; timeouts are only detected when the
// caller polls CheckStreamTimeouts.
func (s *MediaServer) Tick(elapsedMs uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock += elapsedMs
	return s.clock
}

// Clock returns the current logical time in milliseconds
func (s *MediaServer) Clock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// SttState returns the recognition slot state
func (s *MediaServer) SttState() entities.SttState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stt.State()
}

// SttActiveClient returns the client holding the recognition slot, if any
func (s *MediaServer) SttActiveClient() (entities.ClientID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stt.ActiveClient()
}

// TtsState returns the client's playback state. A client with no queue is
// idle.
func (s *MediaServer) TtsState(client entities.ClientID) entities.TtsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.tts.Get(client); ok {
		return q.State()
	}
	return entities.TtsStateIdle
}

// TtsQueueLen returns the number of queued utterances for the client
func (s *MediaServer) TtsQueueLen(client entities.ClientID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.tts.Get(client); ok {
		return q.Len()
	}
	return 0
}

// OutputStreamForClient returns a copy of the client's live output stream,
// if any
func (s *MediaServer) OutputStreamForClient(client entities.ClientID) (entities.AudioStream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream, ok := s.streams.OutputStreamForClient(client); ok {
		return *stream, true
	}
	return entities.AudioStream{}, false
}

// OpenStreams returns copies of every stream not yet closed
func (s *MediaServer) OpenStreams() []entities.AudioStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := s.streams.OpenStreams()
	out := make([]entities.AudioStream, 0, len(open))
	for _, stream := range open {
		out = append(out, *stream)
	}
	return out
}

// RecordStreamTransfer accumulates bytes moved on a stream, for latency and
// throughput reporting
func (s *MediaServer) RecordStreamTransfer(id entities.StreamID, bytes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.RecordTransfer(id, bytes, s.clock)
}

// ConsumeResult pops the oldest buffered recognition result for the client
func (s *MediaServer) ConsumeResult(client entities.ClientID) (entities.SttResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingResults[client]
	if len(pending) == 0 {
		return entities.SttResult{}, ErrNoPendingResult
	}
	result := pending[0]
	if len(pending) == 1 {
		delete(s.pendingResults, client)
	} else {
		s.pendingResults[client] = pending[1:]
	}
	return result, nil
}

// PendingResultsCount returns how many recognition results are buffered for
// the client
func (s *MediaServer) PendingResultsCount(client entities.ClientID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingResults[client])
}

// ClientDisconnect tears down everything owned by the client: its streams,
// the STT session if it holds the slot, its TTS queue, and its buffered
// results. This is the single place all subsystems are reconciled together.
func (s *MediaServer) ClientDisconnect(client entities.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := s.streams.CloseAllForClient(client, s.clock)
	for _, id := range closed {
		if stream, ok := s.streams.Get(id); ok {
			s.observer.StreamClosed(stream.Direction)
		}
	}

	if active, ok := s.stt.ActiveClient(); ok && active == client {
		s.cancelSttLocked()
	}

	if q, ok := s.tts.Get(client); ok {
		q.Cancel(true)
		s.tts.Remove(client)
	}

	delete(s.pendingResults, client)

	s.logger.Info("Client disconnected, media state reconciled",
		zap.Uint64("clientID", uint64(client)),
		zap.Int("streamsClosed", len(closed)))
}

// CheckStreamTimeouts closes streams open longer than the configured maximum
// and reconciles any STT session or TTS queue whose stream was among them.
// Returns the closed stream IDs.
func (s *MediaServer) CheckStreamTimeouts() []entities.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()

	timedOut := s.streams.CheckTimeouts(s.clock, s.config.MaxStreamDurationMs)
	if len(timedOut) == 0 {
		return nil
	}

	for _, id := range timedOut {
		if sessionStream, ok := s.stt.Stream(); ok && sessionStream == id {
			s.logger.Warn("STT stream timed out, cancelling session",
				zap.Uint64("streamID", uint64(id)))
			s.cancelSttLocked()
		}
		for _, q := range s.tts.Queues() {
			if queueStream, ok := q.Stream(); ok && queueStream == id {
				s.logger.Warn("TTS stream timed out, cancelling playback",
					zap.Uint64("clientID", uint64(q.Client())),
					zap.Uint64("streamID", uint64(id)))
				q.Cancel(false)
			}
		}
	}

	s.observer.StreamTimeouts(len(timedOut))
	return timedOut
}

// CleanupStreams garbage-collects closed stream entries and returns the
// count removed
func (s *MediaServer) CleanupStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.CleanupClosed()
}

// HighLatencyStreams reports streams whose time since last transfer exceeds
// the latency budget. Violations are logged and counted, never fatal.
func (s *MediaServer) HighLatencyStreams() []entities.AudioStream {
	s.mu.Lock()
	defer s.mu.Unlock()

	late := s.streams.HighLatencyStreams(s.clock, s.config.MaxLatencyMs)
	if len(late) == 0 {
		return nil
	}
	out := make([]entities.AudioStream, 0, len(late))
	for _, stream := range late {
		out = append(out, *stream)
		s.logger.Warn("Stream exceeded latency budget",
			zap.Uint64("streamID", uint64(stream.ID)),
			zap.Uint64("clientID", uint64(stream.Client)),
			zap.Uint64("latencyMs", stream.Latency(s.clock)))
	}
	s.observer.LatencyViolations(len(late))
	return out
}

// closeStreamLocked closes one stream and reports it to the observer
func (s *MediaServer) closeStreamLocked(id entities.StreamID) {
	if stream, ok := s.streams.Get(id); ok && stream.State != entities.StreamStateClosed {
		s.streams.Close(id, s.clock)
		s.observer.StreamClosed(stream.Direction)
	}
}
