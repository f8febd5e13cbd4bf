package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/domain/repositories"
)

// GoogleProvider implements SttProvider on Google Cloud Speech-to-Text
// streaming recognition. One recognition session maps to one streaming RPC.
type GoogleProvider struct {
	logger *zap.Logger

	mu      sync.Mutex
	session *googleSession
}

type googleSession struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc

	mu            sync.Mutex
	audioReceived bool
	partialText   string
	partialConf   int
	hasPartial    bool
	finalText     string
	finalConf     int
	hasFinal      bool

	done    chan struct{}
	recvErr error
}

// NewGoogleProvider creates an STT provider backed by Google Cloud Speech.
// Credentials are resolved from the environment the usual Google SDK way.
func NewGoogleProvider(logger *zap.Logger) repositories.SttProvider {
	return &GoogleProvider{logger: logger}
}

// Start opens a streaming recognize RPC for a single utterance
func (g *GoogleProvider) Start(ctx context.Context, format entities.AudioFormat, language string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session != nil {
		return fmt.Errorf("recognition session already open")
	}

	encoding, err := audioEncoding(format.Encoding)
	if err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	client, err := speech.NewClient(sessionCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(sessionCtx)
	if err != nil {
		client.Close()
		cancel()
		return fmt.Errorf("open streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:          encoding,
					SampleRateHertz:   int32(format.SampleRate),
					AudioChannelCount: int32(format.Channels),
					LanguageCode:      language,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		cancel()
		return fmt.Errorf("send streaming config: %w", err)
	}

	session := &googleSession{
		client: client,
		stream: stream,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go session.receive()
	g.session = session

	g.logger.Info("Google recognition session opened",
		zap.Int("sampleRate", format.SampleRate),
		zap.String("encoding", format.Encoding),
		zap.String("language", language))
	return nil
}

// FeedAudio forwards captured bytes into the open RPC
func (g *GoogleProvider) FeedAudio(data []byte) error {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()

	if session == nil {
		return fmt.Errorf("no open recognition session")
	}
	if len(data) == 0 {
		return nil
	}

	session.mu.Lock()
	session.audioReceived = true
	session.mu.Unlock()

	if err := session.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("send audio data: %w", err)
	}
	return nil
}

// GetPartial returns the most recent interim hypothesis received so far
func (g *GoogleProvider) GetPartial() (string, int, bool) {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()

	if session == nil {
		return "", 0, false
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.partialText, session.partialConf, session.hasPartial
}

// Stop closes the send side and waits for the receiver to drain the final
// result. A session that saw no audio or no speech reports ok=false without
// an error.
func (g *GoogleProvider) Stop() (string, int, bool, error) {
	g.mu.Lock()
	session := g.session
	g.session = nil
	g.mu.Unlock()

	if session == nil {
		return "", 0, false, fmt.Errorf("no open recognition session")
	}
	defer session.close()

	session.mu.Lock()
	received := session.audioReceived
	session.mu.Unlock()
	if !received {
		return "", 0, false, nil
	}

	if err := session.stream.CloseSend(); err != nil {
		return "", 0, false, fmt.Errorf("close send stream: %w", err)
	}
	<-session.done

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.recvErr != nil {
		return "", 0, false, session.recvErr
	}
	return session.finalText, session.finalConf, session.hasFinal, nil
}

// Cancel abandons the session without waiting for a result
func (g *GoogleProvider) Cancel() {
	g.mu.Lock()
	session := g.session
	g.session = nil
	g.mu.Unlock()

	if session != nil {
		session.close()
		g.logger.Info("Google recognition session cancelled")
	}
}

// IsVoiceActive reports no VAD support; the streaming API handles endpointing
// internally and does not expose activity
func (g *GoogleProvider) IsVoiceActive() (bool, bool) {
	return false, false
}

func (g *GoogleProvider) SupportedFormats() []entities.AudioFormat {
	return []entities.AudioFormat{
		{SampleRate: 16000, Channels: 1, Encoding: "LINEAR16"},
		{SampleRate: 44100, Channels: 1, Encoding: "FLAC"},
		{SampleRate: 8000, Channels: 1, Encoding: "MULAW"},
		{SampleRate: 48000, Channels: 1, Encoding: "OGG_OPUS"},
	}
}

func (g *GoogleProvider) SupportedLanguages() []string {
	return []string{"en-US", "en-GB", "id-ID", "ja-JP", "de-DE", "fr-FR"}
}

func (s *googleSession) receive() {
	defer close(s.done)

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			s.mu.Lock()
			s.recvErr = fmt.Errorf("receive recognition response: %w", err)
			s.mu.Unlock()
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			best := result.Alternatives[0]
			s.mu.Lock()
			if result.IsFinal {
				s.finalText = best.Transcript
				s.finalConf = confidencePercent(best.Confidence)
				s.hasFinal = true
			} else {
				s.partialText = best.Transcript
				s.partialConf = confidencePercent(best.Confidence)
				s.hasPartial = true
			}
			s.mu.Unlock()
		}
	}
}

func (s *googleSession) close() {
	s.cancel()
	if s.client != nil {
		s.client.Close()
	}
}

// confidencePercent converts the API's 0..1 score to a percentage. Interim
// results often carry no score; treat that as a middling 50.
func confidencePercent(score float32) int {
	if score <= 0 {
		return 50
	}
	percent := int(score * 100)
	if percent > 100 {
		percent = 100
	}
	return percent
}

// audioEncoding converts a format encoding name to the Speech API enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
