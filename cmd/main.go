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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitchside/server/adapters"
	"github.com/pitchside/server/adapters/analysis"
	"github.com/pitchside/server/adapters/speech"
	"github.com/pitchside/server/domain/repositories"
	"github.com/pitchside/server/internal/api"
	"github.com/pitchside/server/internal/websocket"
	"github.com/pitchside/server/usecase"
)

func main() {
	// Load .env if present, real environment wins
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Synthesized speech is kept in memory just long enough for playback
	audioStore := adapters.NewMemoryAudioStore("/audio", 10*time.Minute)
	cleanup := adapters.NewAudioCleanupService(audioStore, 5*time.Minute, logger)
	cleanup.Start()
	defer cleanup.Stop()

	analyzer := buildAnalyzer(logger)
	speechFactory := buildSpeechFactory(audioStore, logger)

	// Each WebSocket client gets its own orchestrator and speech capability
	hub := websocket.NewHub(func(sink usecase.EventSink, clientLogger *zap.Logger) *usecase.Orchestrator {
		return usecase.NewOrchestrator(analyzer, speechFactory(clientLogger), nilDevice{}, sink, clientLogger)
	}, usecase.StatsRefreshInterval, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, analyzer, audioStore, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-ctx.Done():
			return ctx.Err()
		}

		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	logger.Info("Server started", zap.String("port", port))

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Fatal("Server exited with error", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildAnalyzer selects the analysis backend from the environment. The mock
// backend keeps the whole conversation loop usable without any external
// service.
func buildAnalyzer(logger *zap.Logger) repositories.Analyzer {
	var analyzer repositories.Analyzer

	switch os.Getenv("PITCHSIDE_ANALYSIS_MODE") {
	case "backend":
		config := analysis.NewBackendConfigFromEnv()
		analyzer = analysis.NewBackendClient(config, logger)
		logger.Info("Using HTTP analysis backend", zap.String("baseURL", config.BaseURL))
	default:
		analyzer = analysis.NewMockBackend(logger)
		logger.Info("Using mock analysis backend")
	}

	if os.Getenv("PITCHSIDE_RECOGNITION_MODE") == "google" {
		config := analysis.NewRecognitionConfigFromEnv()
		analyzer = analysis.NewRecognitionAnalyzer(&speech.GoogleRecognitionEngine{}, config, analyzer, logger)
		logger.Info("Google speech recognition enabled", zap.String("language", config.Language))
	}

	if os.Getenv("GEMINI_API_KEY") != "" {
		config := analysis.NewGeminiConfigFromEnv()
		gemini, err := analysis.NewGeminiAnalyzer(context.Background(), config, analyzer, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini analyzer", zap.Error(err))
		}
		analyzer = gemini
		logger.Info("Gemini direct analysis enabled", zap.String("model", config.Model))
	}

	return analyzer
}

// buildSpeechFactory selects the speech capability from the environment.
// Cloud mode synthesizes through ElevenLabs and needs its own per-client
// instance so one viewer's cancel never cuts off another's playback.
func buildSpeechFactory(audioStore *adapters.MemoryAudioStore, logger *zap.Logger) func(*zap.Logger) repositories.SpeechCapability {
	switch os.Getenv("PITCHSIDE_SPEECH_MODE") {
	case "cloud":
		config := speech.NewElevenLabsConfigFromEnv()
		if err := speech.ValidateElevenLabsConfig(config); err != nil {
			logger.Fatal("Invalid ElevenLabs configuration", zap.Error(err))
		}
		return func(clientLogger *zap.Logger) repositories.SpeechCapability {
			cloud, err := speech.NewCloudSpeech(config, audioStore, clientLogger)
			if err != nil {
				clientLogger.Error("Falling back to device speech", zap.Error(err))
				return speech.NewDeviceSpeech(speech.NewMockSynthesisEngine(clientLogger), nil, nil, clientLogger)
			}
			return cloud
		}
	default:
		return func(clientLogger *zap.Logger) repositories.SpeechCapability {
			return speech.NewDeviceSpeech(speech.NewMockSynthesisEngine(clientLogger), nil, nil, clientLogger)
		}
	}
}

// nilDevice satisfies the capture device contract for browser clients,
// whose audio arrives as WebSocket frames rather than from server hardware.
type nilDevice struct{}

func (nilDevice) Acquire(ctx context.Context) error { return nil }
func (nilDevice) Release()                          {}
func (nilDevice) MIMEType() string                  { return "audio/webm" }
