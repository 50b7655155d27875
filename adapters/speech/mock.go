package speech

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/repositories"
)

// MockSynthesisEngine is a placeholder local playback engine. Playback
// duration scales with text length so cancellation paths are exercisable.
type MockSynthesisEngine struct {
	logger  *zap.Logger
	PerChar time.Duration
}

// NewMockSynthesisEngine creates a mock synthesis engine
func NewMockSynthesisEngine(logger *zap.Logger) *MockSynthesisEngine {
	return &MockSynthesisEngine{
		logger:  logger,
		PerChar: time.Millisecond,
	}
}

// Synthesize simulates playback for a duration proportional to the text
func (m *MockSynthesisEngine) Synthesize(ctx context.Context, text string, opts repositories.SpeakOptions) error {
	duration := time.Duration(len(text)) * m.PerChar
	rate := opts.Rate
	if rate > 0 {
		duration = time.Duration(float64(duration) / rate)
	}

	m.logger.Info("Mock synthesis",
		zap.Int("textLength", len(text)),
		zap.Duration("duration", duration))

	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockRecognitionEngine is a placeholder recognition engine returning
// canned transcripts keyed on audio size.
type MockRecognitionEngine struct {
	logger *zap.Logger
}

// NewMockRecognitionEngine creates a mock recognition engine
func NewMockRecognitionEngine(logger *zap.Logger) *MockRecognitionEngine {
	return &MockRecognitionEngine{logger: logger}
}

// Recognize returns a canned transcript based on audio size
func (m *MockRecognitionEngine) Recognize(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	m.logger.Info("Mock recognition",
		zap.Int("audioSize", len(audio)),
		zap.String("encoding", config.Encoding))

	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	switch {
	case len(audio) > 10000:
		return "Can you break down the tactical patterns of the second half?", nil
	case len(audio) > 1000:
		return "What formation is the home team playing?", nil
	default:
		return "How effective is their pressing?", nil
	}
}

// MockUtteranceSource yields a fixed audio capture
type MockUtteranceSource struct {
	Audio  []byte
	Config repositories.AudioConfig
	Err    error
}

// CaptureUtterance returns the configured capture
func (m *MockUtteranceSource) CaptureUtterance(ctx context.Context) ([]byte, repositories.AudioConfig, error) {
	if m.Err != nil {
		return nil, repositories.AudioConfig{}, m.Err
	}
	return m.Audio, m.Config, nil
}
