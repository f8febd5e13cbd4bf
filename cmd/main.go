package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/velaterm/vela/adapters/audioinput"
	"github.com/velaterm/vela/adapters/stt"
	"github.com/velaterm/vela/adapters/tts"
	"github.com/velaterm/vela/domain/repositories"
	"github.com/velaterm/vela/internal/api"
	"github.com/velaterm/vela/internal/metrics"
	"github.com/velaterm/vela/internal/websocket"
	"github.com/velaterm/vela/usecase"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize providers
	sttProvider := buildSttProvider(logger)
	ttsProvider := buildTtsProvider(logger)
	inputProvider := buildInputProvider(logger)

	// Initialize the media server with Prometheus metrics
	media := usecase.NewMediaServer(usecase.ConfigFromEnv(), sttProvider, ttsProvider, inputProvider, logger)
	media.SetObserver(metrics.NewCollector("vela", prometheus.DefaultRegisterer))

	// Initialize WebSocket hub
	hub := websocket.NewHub(media, ttsProvider, logger)
	go hub.Run()

	// Background clock and stream housekeeping
	maintenance := websocket.NewMaintenanceService(media, 50*time.Millisecond, logger)
	maintenance.Start()
	defer maintenance.Stop()

	// Initialize API routes
	api.InitRoutes(e, hub, media, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Media server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildSttProvider selects the recognition engine by VELA_STT_PROVIDER:
// "google" for Cloud Speech, anything else for the mock
func buildSttProvider(logger *zap.Logger) repositories.SttProvider {
	switch os.Getenv("VELA_STT_PROVIDER") {
	case "google":
		logger.Info("Using Google Cloud Speech recognition")
		return stt.NewGoogleProvider(logger)
	default:
		logger.Info("Using mock speech recognition")
		return stt.NewMockProvider(logger)
	}
}

// buildTtsProvider selects the synthesis engine by VELA_TTS_PROVIDER:
// "elevenlabs" for the ElevenLabs API, anything else for the mock
func buildTtsProvider(logger *zap.Logger) repositories.TtsProvider {
	switch os.Getenv("VELA_TTS_PROVIDER") {
	case "elevenlabs":
		provider, err := tts.NewElevenLabsProvider(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to configure ElevenLabs", zap.Error(err))
		}
		logger.Info("Using ElevenLabs speech synthesis")
		return provider
	default:
		logger.Info("Using mock speech synthesis")
		return tts.NewMockProvider(logger)
	}
}

// buildInputProvider selects the capture device by VELA_AUDIO_INPUT: "mock"
// enables the simulated microphone, unset disables server-side capture
func buildInputProvider(logger *zap.Logger) repositories.AudioInputProvider {
	switch os.Getenv("VELA_AUDIO_INPUT") {
	case "mock":
		logger.Info("Using mock audio capture")
		return audioinput.NewMockProvider(logger)
	default:
		return nil
	}
}
