package entities

import "errors"

// STT session errors. All of them are recoverable; the caller is expected to
// inspect session state and retry the correct operation.
var (
	ErrSttAlreadyActive = errors.New("stt session already active")
	ErrSttInvalidState  = errors.New("stt session in invalid state for operation")
)

// TTS queue errors.
var (
	ErrTtsQueueFull    = errors.New("tts queue full")
	ErrTtsQueueEmpty   = errors.New("tts queue empty")
	ErrTtsInvalidState = errors.New("tts queue in invalid state for operation")
)

// Stream errors. A missing stream is a normal, checked condition: streams may
// already be closed by timeout or disconnect handling.
var (
	ErrStreamNotFound       = errors.New("stream not found")
	ErrStreamInvalidState   = errors.New("stream in invalid state for operation")
	ErrStreamWrongDirection = errors.New("operation not valid for stream direction")
)
