package repositories

import (
	"context"
	"io"

	"github.com/pitchside/server/domain/entities"
)

// AnalysisQuery is an outbound tactical question. Constructed fresh per turn
// and not retained after send.
type AnalysisQuery struct {
	Query     string   `json:"query"`
	VideoID   string   `json:"video_id,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// AnalysisResult is the backend's answer to a single query. It is transient:
// immediately projected into a Message and into display-state.
type AnalysisResult struct {
	Text       string                  `json:"text"`
	AudioURL   string                  `json:"audioUrl,omitempty"`
	Insights   []string                `json:"insights,omitempty"`
	Stats      *entities.StatsSnapshot `json:"stats,omitempty"`
	Formations *entities.FormationPair `json:"formations,omitempty"`
}

// Analyzer abstracts the analysis backend. Each operation is a single
// request/response exchange; the contract enforces no retry and no timeout,
// leaving retry policy to the caller or the transport.
type Analyzer interface {
	// UploadVideo submits match footage and returns its video id.
	UploadVideo(ctx context.Context, video io.Reader, filename string) (string, error)
	// ChatQuery answers a tactical question, optionally scoped to a video.
	ChatQuery(ctx context.Context, query AnalysisQuery) (*AnalysisResult, error)
	// GetStats fetches the current match statistics. videoID may be empty.
	GetStats(ctx context.Context, videoID string) (*entities.StatsSnapshot, error)
	// GetFormations fetches positional formation data for a video.
	GetFormations(ctx context.Context, videoID string, timestamp *float64) (*entities.TeamFormation, error)
	// Transcribe converts a recorded utterance to text.
	Transcribe(ctx context.Context, artifact entities.RecordingArtifact) (string, error)
}
