package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pitchside/server/adapters"
	"github.com/pitchside/server/domain/repositories"
	"github.com/pitchside/server/internal/auth"
	"github.com/pitchside/server/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	analyzer repositories.Analyzer,
	audioStore *adapters.MemoryAudioStore,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "pitchside-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Session APIs
	v1.POST("/sessions", func(c echo.Context) error {
		return createSession(c, logger)
	})

	// Video upload API
	v1.POST("/videos", func(c echo.Context) error {
		return uploadVideo(c, hub, analyzer, logger)
	})

	// Formation overlay data for the pitch view
	v1.GET("/formations/:videoID", func(c echo.Context) error {
		return getFormations(c, analyzer, logger)
	})

	// Synthesized speech playback
	e.GET("/audio/:id", func(c echo.Context) error {
		return serveAudio(c, audioStore, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// createSession issues a fresh analysis session token
func createSession(c echo.Context, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Session created", zap.String("session_id", sessionID))

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(auth.SessionTokenTTL),
		SessionID: sessionID,
	})
}

// uploadVideo forwards match footage to the analysis backend. When the
// caller has a live WebSocket session the upload runs through its
// orchestrator, so the confirmation message lands in the conversation.
func uploadVideo(c echo.Context, hub *websocket.Hub, analyzer repositories.Analyzer, logger *zap.Logger) error {
	claims, err := claimsFromRequest(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Valid session token is required",
		})
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "Multipart field 'video' is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_file",
			Message: "Uploaded file could not be read",
		})
	}
	defer file.Close()

	ctx := c.Request().Context()

	var videoID string
	if orchestrator := hub.Orchestrator(claims.SessionID); orchestrator != nil {
		videoID, err = orchestrator.UploadVideo(ctx, file, fileHeader.Filename)
	} else {
		videoID, err = analyzer.UploadVideo(ctx, file, fileHeader.Filename)
	}
	if err != nil {
		logger.Error("Video upload failed",
			zap.String("session_id", claims.SessionID),
			zap.String("filename", fileHeader.Filename),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "upload_failed",
			Message: "Video could not be uploaded for analysis",
		})
	}

	logger.Info("Video uploaded",
		zap.String("session_id", claims.SessionID),
		zap.String("video_id", videoID))

	return c.JSON(http.StatusOK, UploadResponse{VideoID: videoID})
}

// getFormations proxies formation lookups for the attached footage. An
// optional timestamp query narrows the lookup to a moment in the match.
func getFormations(c echo.Context, analyzer repositories.Analyzer, logger *zap.Logger) error {
	videoID := c.Param("videoID")

	var timestamp *float64
	if raw := c.QueryParam("timestamp"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_timestamp",
				Message: "timestamp must be a non-negative number of seconds",
			})
		}
		timestamp = &seconds
	}

	formation, err := analyzer.GetFormations(c.Request().Context(), videoID, timestamp)
	if err != nil {
		logger.Error("Formation lookup failed",
			zap.String("video_id", videoID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "formations_unavailable",
			Message: "Formation data could not be fetched",
		})
	}

	return c.JSON(http.StatusOK, formation)
}

// serveAudio streams a stored synthesized speech clip
func serveAudio(c echo.Context, store *adapters.MemoryAudioStore, logger *zap.Logger) error {
	clip, err := store.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "audio_not_found",
			Message: "Audio clip does not exist or has expired",
		})
	}

	return c.Blob(http.StatusOK, clip.MIMEType, clip.Data)
}

// claimsFromRequest extracts and validates the session token. Browsers
// cannot set headers on WebSocket upgrades, so the token is also accepted
// as a query parameter.
func claimsFromRequest(c echo.Context) (*auth.JWTClaims, error) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return nil, echo.ErrUnauthorized
	}

	return auth.ValidateToken(token)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, err := claimsFromRequest(c)
	if err != nil {
		logger.Warn("WebSocket connection rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Valid session token is required",
		})
	}

	if claims.Role != "viewer" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only viewer tokens are allowed for WebSocket connections",
		})
	}

	if claims.SessionID == "" {
		logger.Error("WebSocket connection rejected: missing session ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Session ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID))

	return websocket.HandleWebSocket(hub, c, claims.SessionID, logger)
}
