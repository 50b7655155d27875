package analysis

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/pitchside/server/domain/repositories"
)

const (
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultGeminiTemperature = 0.4
	defaultGeminiMaxTokens   = 1024

	tacticalSystemPrompt = "You are a professional football tactical analyst. " +
		"Answer questions about formations, pressing, transitions, and player roles " +
		"concisely, as if briefing a coaching staff during a match."
)

// GeminiConfig holds configuration for the direct Gemini analyzer.
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: the Gemini model id (default: "gemini-2.0-flash")
// - Temperature: sampling temperature between 0 and 1 (default: 0.4)
// - MaxOutputTokens: response token cap (default: 1024)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
}

// NewGeminiConfigFromEnv creates a GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// GeminiAnalyzer routes tactical questions directly to Gemini instead of the
// HTTP analysis backend. Every other Analyzer operation (upload, stats,
// formations, transcription) is delegated to the wrapped backend, so direct
// mode changes where answers come from without changing the contract.
type GeminiAnalyzer struct {
	repositories.Analyzer // delegate for non-chat operations

	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer wrapping a delegate
// for the operations Gemini does not serve.
func NewGeminiAnalyzer(ctx context.Context, config GeminiConfig, delegate repositories.Analyzer, logger *zap.Logger) (*GeminiAnalyzer, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultGeminiTemperature)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultGeminiMaxTokens
	}

	return &GeminiAnalyzer{
		Analyzer:        delegate,
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
	}, nil
}

// ChatQuery answers a tactical question directly via Gemini
func (g *GeminiAnalyzer) ChatQuery(ctx context.Context, query repositories.AnalysisQuery) (*repositories.AnalysisResult, error) {
	prompt := query.Query
	if query.VideoID != "" {
		prompt = fmt.Sprintf("The question concerns uploaded match footage (video %s). %s", query.VideoID, prompt)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(tacticalSystemPrompt, genai.RoleUser),
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("gemini chat query failed: %w", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no content")
	}

	var answer string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			answer += part.Text
		}
	}
	if answer == "" {
		return nil, fmt.Errorf("gemini returned empty answer")
	}

	g.logger.Info("Direct analysis answer generated",
		zap.String("model", g.model),
		zap.Int("length", len(answer)))

	return &repositories.AnalysisResult{Text: answer}, nil
}
