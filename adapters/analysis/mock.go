package analysis

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

// MockBackend is a placeholder Analyzer for development and testing. It
// returns canned tactical answers and randomized match statistics without
// touching the network.
type MockBackend struct {
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Ensure MockBackend implements the Analyzer interface
var _ repositories.Analyzer = (*MockBackend)(nil)

// NewMockBackend creates a new mock analysis backend
func NewMockBackend(logger *zap.Logger) *MockBackend {
	return &MockBackend{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// intn guards the shared rng; stats refresh and chat turns run concurrently
func (m *MockBackend) intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Intn(n)
}

var mockAnswers = []repositories.AnalysisResult{
	{
		Text:     "Based on the video analysis, I can see the team is using a 4-3-3 formation with high pressing tactics. The wingers are staying wide to create attacking width.",
		Insights: []string{"High press activation", "Wide attacking play", "Quick transitions"},
	},
	{
		Text:     "The defensive line is maintaining a high position, which creates space behind but allows for effective offside traps. I notice good communication between center-backs.",
		Insights: []string{"High defensive line", "Offside trap usage", "CB communication"},
	},
	{
		Text:     "The midfield is showing excellent ball retention with short passing combinations. The central midfielder is dropping deep to collect the ball from defense.",
		Insights: []string{"Ball retention focus", "Short passing game", "Deep-lying playmaker"},
	},
}

var mockQuestions = []string{
	"What formation is the home team playing?",
	"How effective is their pressing?",
	"What are the key tactical patterns?",
	"Who are the most influential players?",
}

// UploadVideo pretends to ingest footage and returns a fixed video id
func (m *MockBackend) UploadVideo(ctx context.Context, video io.Reader, filename string) (string, error) {
	if _, err := io.Copy(io.Discard, video); err != nil {
		return "", fmt.Errorf("failed to read video data: %w", err)
	}

	m.logger.Info("Mock video upload", zap.String("filename", filename))
	return "mock-video-123", nil
}

// ChatQuery returns one of the canned tactical answers
func (m *MockBackend) ChatQuery(ctx context.Context, query repositories.AnalysisQuery) (*repositories.AnalysisResult, error) {
	m.logger.Info("Mock chat query",
		zap.String("query", query.Query),
		zap.String("videoID", query.VideoID))

	answer := mockAnswers[m.intn(len(mockAnswers))]
	return &answer, nil
}

// GetStats returns randomized but plausible match statistics
func (m *MockBackend) GetStats(ctx context.Context, videoID string) (*entities.StatsSnapshot, error) {
	return &entities.StatsSnapshot{
		Possession:   entities.TeamSplit{Home: m.intn(20) + 45, Away: m.intn(20) + 35},
		Shots:        entities.TeamSplit{Home: m.intn(8) + 8, Away: m.intn(6) + 6},
		PassAccuracy: entities.TeamSplit{Home: m.intn(10) + 80, Away: m.intn(10) + 75},
		Corners:      entities.TeamSplit{Home: m.intn(4) + 4, Away: m.intn(3) + 2},
		Fouls:        entities.TeamSplit{Home: m.intn(5) + 8, Away: m.intn(6) + 10},
		FetchedAt:    time.Now(),
	}, nil
}

// GetFormations returns a minimal positional snapshot
func (m *MockBackend) GetFormations(ctx context.Context, videoID string, timestamp *float64) (*entities.TeamFormation, error) {
	formation := &entities.TeamFormation{
		Home: []entities.Player{{Number: 1, Team: "home", X: 0.05, Y: 0.5, Position: "GK"}},
		Away: []entities.Player{{Number: 1, Team: "away", X: 0.95, Y: 0.5, Position: "GK"}},
	}
	if timestamp != nil {
		formation.Timestamp = *timestamp
	}
	return formation, nil
}

// Transcribe returns one of a fixed set of plausible questions
func (m *MockBackend) Transcribe(ctx context.Context, artifact entities.RecordingArtifact) (string, error) {
	if len(artifact.Data) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	question := mockQuestions[m.intn(len(mockQuestions))]
	m.logger.Info("Mock transcription",
		zap.Int("audioSize", len(artifact.Data)),
		zap.String("text", question))
	return question, nil
}
