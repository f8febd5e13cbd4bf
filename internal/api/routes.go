package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/internal/auth"
	"github.com/velaterm/vela/internal/websocket"
	"github.com/velaterm/vela/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, media *usecase.MediaServer, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "vela-media-server",
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/clients/auth", func(c echo.Context) error {
		return clientAuth(c, logger)
	})

	v1.GET("/media/state", func(c echo.Context) error {
		return mediaState(c, hub, media)
	})
	v1.GET("/media/streams", func(c echo.Context) error {
		return mediaStreams(c, media)
	})
	v1.GET("/media/invariants", func(c echo.Context) error {
		return mediaInvariants(c, media)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// clientAuth issues a JWT for a media client. When VELA_ACCESS_KEY is set,
// the request must present it; unset means open access for development.
func clientAuth(c echo.Context, logger *zap.Logger) error {
	var req ClientAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind client auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.ClientID == 0 || req.Role == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client ID and role are required",
		})
	}

	if accessKey := os.Getenv("VELA_ACCESS_KEY"); accessKey != "" && req.AccessKey != accessKey {
		logger.Warn("Client authentication failed",
			zap.Uint64("client_id", req.ClientID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}

	token, err := auth.GenerateClientToken(entities.ClientID(req.ClientID), req.Role)
	if err != nil {
		logger.Error("Failed to generate client token",
			zap.Uint64("client_id", req.ClientID), zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "token_generation_failed",
			Message: err.Error(),
		})
	}

	logger.Info("Client authenticated",
		zap.Uint64("client_id", req.ClientID),
		zap.String("role", req.Role))

	return c.JSON(http.StatusOK, ClientAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  req.ClientID,
	})
}

func mediaState(c echo.Context, hub *websocket.Hub, media *usecase.MediaServer) error {
	response := MediaStateResponse{
		Clock:            media.Clock(),
		SttState:         string(media.SttState()),
		OpenStreams:      len(media.OpenStreams()),
		ConnectedClients: hub.ClientCount(),
	}
	if client, ok := media.SttActiveClient(); ok {
		id := uint64(client)
		response.SttClient = &id
	}
	return c.JSON(http.StatusOK, response)
}

func mediaStreams(c echo.Context, media *usecase.MediaServer) error {
	streams := media.OpenStreams()
	if streams == nil {
		streams = []entities.AudioStream{}
	}
	return c.JSON(http.StatusOK, StreamsResponse{Streams: streams})
}

func mediaInvariants(c echo.Context, media *usecase.MediaServer) error {
	err := media.VerifyInvariants()
	if err == nil {
		return c.JSON(http.StatusOK, InvariantsResponse{Healthy: true})
	}

	var violations []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, violation := range joined.Unwrap() {
			violations = append(violations, violation.Error())
		}
	} else {
		violations = append(violations, err.Error())
	}
	return c.JSON(http.StatusServiceUnavailable, InvariantsResponse{
		Healthy:    false,
		Violations: violations,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.ClientID == 0 {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.Uint64("client_id", claims.ClientID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocket(hub, c, entities.ClientID(claims.ClientID), claims.Role, logger)
}
