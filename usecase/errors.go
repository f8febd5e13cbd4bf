package usecase

import (
	"errors"
	"fmt"

	"github.com/velaterm/vela/domain/entities"
)

// Provider wiring errors, returned by orchestration paths that need a
// capability the server was constructed without.
var (
	ErrNoSttProvider   = errors.New("no stt provider configured")
	ErrNoTtsProvider   = errors.New("no tts provider configured")
	ErrNoAudioInput    = errors.New("no audio input provider configured")
	ErrNoPendingResult = errors.New("no pending result for client")
)

// ClientNotFoundError is returned by TTS operations addressed to a client
// that has never queued anything
type ClientNotFoundError struct {
	Client entities.ClientID
}

func (e ClientNotFoundError) Error() string {
	return fmt.Sprintf("client %d not found", e.Client)
}

// InvariantViolationError reports one failed consistency check, named by the
// condition that did not hold
type InvariantViolationError struct {
	Check  string
	Detail string
}

func (e InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Check, e.Detail)
}
