package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID    = "jsCqWAovK2LkecY7zXl4"
	defaultModelID    = "eleven_monolingual_v1"
	defaultStability  = 0.5
	defaultClarity    = 0.5
)

// ElevenLabsConfig holds configuration for the cloud speech variant.
// Required fields:
// - APIKey: Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - VoiceID: the voice ID to use
// - ModelID: the model ID to use (default: "eleven_monolingual_v1")
// - Stability: voice stability between 0 and 1 (default: 0.5)
// - Clarity: voice clarity/similarity boost between 0 and 1 (default: 0.5)
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	VoiceID    string
	ModelID    string
	Stability  float64
	Clarity    float64
}

// NewElevenLabsConfigFromEnv creates an ElevenLabsConfig from environment variables
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:     os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL: os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:    os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:    os.Getenv("ELEVEN_LABS_MODEL_ID"),
	}

	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	return nil
}

// CloudSpeech is the cloud-synthesis variant of the speech capability,
// backed by the Eleven Labs API. Speak synthesizes the text and publishes
// the audio into an AudioStore, returning the playable reference; the
// presentation layer plays it explicitly. Recognition is not offered by
// this provider, so Listen reports the capability as unsupported.
type CloudSpeech struct {
	apiKey     string
	apiBaseURL string
	voiceID    string
	modelID    string
	stability  float64
	clarity    float64

	store      repositories.AudioStore
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
}

// Ensure CloudSpeech implements the SpeechCapability interface
var _ repositories.SpeechCapability = (*CloudSpeech)(nil)

// NewCloudSpeech creates the Eleven Labs speech variant
func NewCloudSpeech(config ElevenLabsConfig, store repositories.AudioStore, logger *zap.Logger) (*CloudSpeech, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &CloudSpeech{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		voiceID:    voiceID,
		modelID:    modelID,
		stability:  stability,
		clarity:    clarity,
		store:      store,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// Speak synthesizes text via Eleven Labs and returns the playable reference
func (c *CloudSpeech) Speak(ctx context.Context, text string, opts repositories.SpeakOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text cannot be empty")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.speaking = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.speaking = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	request := elevenLabsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.clarity,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.apiBaseURL, c.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repositories.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return "", fmt.Errorf("%w: %s", repositories.ErrProvider, resp.Status)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repositories.ErrProvider, err)
	}

	audioURL, err := c.store.Put(audioData, "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	c.logger.Info("Synthesized speech",
		zap.String("voiceID", c.voiceID),
		zap.Int("audioSize", len(audioData)),
		zap.String("audioURL", audioURL))

	return audioURL, nil
}

// CancelSpeech aborts an in-flight synthesis. Idempotent.
func (c *CloudSpeech) CancelSpeech() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// IsSpeaking reports whether a synthesis request is in flight
func (c *CloudSpeech) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Listen is not offered by the cloud provider
func (c *CloudSpeech) Listen(ctx context.Context) (string, error) {
	return "", fmt.Errorf("%w: eleven labs offers no speech recognition", repositories.ErrCapabilityUnsupported)
}
