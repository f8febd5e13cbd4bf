package repositories

import (
	"context"

	"github.com/velaterm/vela/domain/entities"
)

// AudioCaptureFunc receives captured audio bytes. It may be invoked from a
// platform-owned thread independent of the caller's loop, so implementations
// must only append to shared state under their own synchronization.
type AudioCaptureFunc func(data []byte)

// AudioInputProvider abstracts a microphone or other capture device
type AudioInputProvider interface {
	// Start opens the device and begins delivering audio to the callback
	Start(ctx context.Context, format entities.AudioFormat, device string, callback AudioCaptureFunc) error
	// Stop ends capture; the callback is not invoked after Stop returns
	Stop() error
	// IsCapturing reports whether capture is currently running
	IsCapturing() bool
}
