package websocket

import (
	"time"

	"go.uber.org/zap"

	"github.com/velaterm/vela/usecase"
)

// MaintenanceService drives the media server's logical clock and periodic
// housekeeping: stream timeout enforcement, closed-stream cleanup, and
// latency reporting.
type MaintenanceService struct {
	media    *usecase.MediaServer
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewMaintenanceService creates a maintenance service ticking at the interval
func NewMaintenanceService(media *usecase.MediaServer, interval time.Duration, logger *zap.Logger) *MaintenanceService {
	return &MaintenanceService{
		media:    media,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the background maintenance loop
func (s *MaintenanceService) Start() {
	go s.maintenanceLoop()
	s.logger.Info("Media maintenance service started",
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the maintenance loop
func (s *MaintenanceService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("Media maintenance service stopped")
}

func (s *MaintenanceService) maintenanceLoop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			s.runMaintenance(uint64(elapsed.Milliseconds()))
		}
	}
}

// runMaintenance advances the clock and performs one housekeeping pass
func (s *MaintenanceService) runMaintenance(elapsedMs uint64) {
	s.media.Tick(elapsedMs)

	if timedOut := s.media.CheckStreamTimeouts(); len(timedOut) > 0 {
		s.logger.Warn("Closed streams exceeding max duration",
			zap.Int("count", len(timedOut)))
	}
	if removed := s.media.CleanupStreams(); removed > 0 {
		s.logger.Debug("Removed closed streams", zap.Int("count", removed))
	}
	s.media.HighLatencyStreams()
}
