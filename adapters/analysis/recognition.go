package analysis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

// RecognitionConfig holds settings for local speech recognition
type RecognitionConfig struct {
	SampleRate int
	Language   string
}

// NewRecognitionConfigFromEnv creates a RecognitionConfig from environment variables
func NewRecognitionConfigFromEnv() RecognitionConfig {
	config := RecognitionConfig{
		SampleRate: 48000,
		Language:   "en-US",
	}
	if v := os.Getenv("PITCHSIDE_RECOGNITION_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			config.SampleRate = rate
		}
	}
	if v := os.Getenv("PITCHSIDE_RECOGNITION_LANGUAGE"); v != "" {
		config.Language = v
	}
	return config
}

// RecognitionAnalyzer routes voice transcription through a local recognition
// engine instead of the analysis backend; every other operation passes
// through to the delegate.
type RecognitionAnalyzer struct {
	repositories.Analyzer

	engine repositories.RecognitionEngine
	config RecognitionConfig
	logger *zap.Logger
}

// NewRecognitionAnalyzer wraps delegate so Transcribe runs on engine
func NewRecognitionAnalyzer(engine repositories.RecognitionEngine, config RecognitionConfig, delegate repositories.Analyzer, logger *zap.Logger) *RecognitionAnalyzer {
	return &RecognitionAnalyzer{
		Analyzer: delegate,
		engine:   engine,
		config:   config,
		logger:   logger,
	}
}

// Transcribe converts a finished recording to text via the recognition engine
func (r *RecognitionAnalyzer) Transcribe(ctx context.Context, artifact entities.RecordingArtifact) (string, error) {
	if len(artifact.Data) == 0 {
		return "", fmt.Errorf("%w: empty recording", repositories.ErrRecognition)
	}

	audioConfig := repositories.AudioConfig{
		SampleRate: r.config.SampleRate,
		Language:   r.config.Language,
		Encoding:   encodingFromMIME(artifact.MIMEType),
	}

	transcript, err := r.engine.Recognize(ctx, artifact.Data, audioConfig)
	if err != nil {
		return "", err
	}

	r.logger.Info("Recording transcribed",
		zap.Int("audioSize", len(artifact.Data)),
		zap.Int("transcriptLength", len(transcript)))
	return transcript, nil
}

func encodingFromMIME(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "WEBM_OPUS"
	case strings.Contains(mimeType, "ogg"):
		return "OGG_OPUS"
	case strings.Contains(mimeType, "flac"):
		return "FLAC"
	case strings.Contains(mimeType, "mulaw"):
		return "MULAW"
	default:
		return "LINEAR16"
	}
}
