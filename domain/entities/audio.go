package entities

// ClientID identifies an agent or terminal endpoint attached to the media
// server. IDs are issued by the surrounding application, never by the server.
type ClientID uint64

// StreamID identifies one in-flight audio transfer.
type StreamID uint64

// UtteranceID identifies one queued or playing TTS utterance. IDs are
// sequential per queue, starting at zero.
type UtteranceID uint64

// AudioFormat describes the sample format negotiated with a device.
// It is immutable once a stream exists.
type AudioFormat struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
}

// DefaultAudioFormat returns the format used when a client does not
// negotiate one: 16 kHz mono LINEAR16 PCM.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		Encoding:   "LINEAR16",
	}
}

// Priority determines TTS queue ordering and preemption rights.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)
