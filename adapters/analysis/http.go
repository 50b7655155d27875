package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

const defaultBackendBaseURL = "http://localhost:8000/api"

// BackendConfig holds configuration for the HTTP analysis backend client.
// Required fields: none; BaseURL defaults to the local development backend.
type BackendConfig struct {
	BaseURL string
}

// NewBackendConfigFromEnv creates a BackendConfig from environment variables
func NewBackendConfigFromEnv() BackendConfig {
	return BackendConfig{
		BaseURL: os.Getenv("PITCHSIDE_BACKEND_URL"),
	}
}

// BackendClient implements the Analyzer interface against the remote
// analysis backend over HTTP. Each operation is one request/response
// exchange: no retry, no client-side timeout. Callers bound latency through
// the context.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure BackendClient implements the Analyzer interface
var _ repositories.Analyzer = (*BackendClient)(nil)

// NewBackendClient creates a new analysis backend client
func NewBackendClient(config BackendConfig, logger *zap.Logger) *BackendClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBackendBaseURL
		logger.Info("Using default backend base URL", zap.String("baseURL", baseURL))
	}

	return &BackendClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// UploadVideo submits match footage as multipart form data
func (c *BackendClient) UploadVideo(ctx context.Context, video io.Reader, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("video", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return "", fmt.Errorf("failed to copy video data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-video", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed: %s", resp.Status)
	}

	var result struct {
		VideoID string `json:"videoId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.logger.Info("Video uploaded", zap.String("videoID", result.VideoID))
	return result.VideoID, nil
}

// ChatQuery sends one tactical question and returns the backend's answer
func (c *BackendClient) ChatQuery(ctx context.Context, query repositories.AnalysisQuery) (*repositories.AnalysisResult, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat query failed: %s", resp.Status)
	}

	var result repositories.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	return &result, nil
}

// GetStats fetches the current match statistics. videoID may be empty.
func (c *BackendClient) GetStats(ctx context.Context, videoID string) (*entities.StatsSnapshot, error) {
	statsURL := c.baseURL + "/stats"
	if videoID != "" {
		statsURL += "/" + url.PathEscape(videoID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stats fetch failed: %s", resp.Status)
	}

	var stats entities.StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}

	return &stats, nil
}

// GetFormations fetches positional formation data for a video
func (c *BackendClient) GetFormations(ctx context.Context, videoID string, timestamp *float64) (*entities.TeamFormation, error) {
	formationsURL := c.baseURL + "/formations/" + url.PathEscape(videoID)
	if timestamp != nil {
		formationsURL += "?timestamp=" + strconv.FormatFloat(*timestamp, 'f', -1, 64)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formationsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("formations fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("formations fetch failed: %s", resp.Status)
	}

	var formation entities.TeamFormation
	if err := json.NewDecoder(resp.Body).Decode(&formation); err != nil {
		return nil, fmt.Errorf("failed to decode formations response: %w", err)
	}

	return &formation, nil
}

// Transcribe converts a recorded utterance to text via the backend
func (c *BackendClient) Transcribe(ctx context.Context, artifact entities.RecordingArtifact) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "voice.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice-to-text", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice processing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("voice processing failed: %s", resp.Status)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return result.Text, nil
}
