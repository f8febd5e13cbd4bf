package usecase

import "github.com/velaterm/vela/domain/entities"

// MediaObserver receives counters from the media server for export. The
// server calls it synchronously while holding its lock, so implementations
// must be cheap and must not call back into the server.
type MediaObserver interface {
	StreamOpened(direction entities.StreamDirection)
	StreamClosed(direction entities.StreamDirection)
	UtteranceQueued(priority entities.Priority)
	UtteranceFinished()
	ResultDelivered()
	StreamTimeouts(count int)
	LatencyViolations(count int)
}

type nopObserver struct{}

func (nopObserver) StreamOpened(entities.StreamDirection) {}
func (nopObserver) StreamClosed(entities.StreamDirection) {}
func (nopObserver) UtteranceQueued(entities.Priority)     {}
func (nopObserver) UtteranceFinished()                    {}
func (nopObserver) ResultDelivered()                      {}
func (nopObserver) StreamTimeouts(int)                    {}
func (nopObserver) LatencyViolations(int)                 {}
