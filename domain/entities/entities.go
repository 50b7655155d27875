package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the author of a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message represents a single turn entry in the conversation log.
// Messages are immutable once appended to a MessageLog.
type Message struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	AudioURL  string      `json:"audio_url,omitempty"`
	Insights  []string    `json:"insights,omitempty"`
}

// NewMessage creates a message with a fresh identity and timestamp.
// The sequence number is assigned by the log on append.
func NewMessage(role MessageRole, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Validate validates the message data
func (m *Message) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return errors.New("invalid message role")
	}
	return nil
}

// VideoHandle references the uploaded match footage. It is owned by the
// upload flow and attached by reference to subsequent analysis queries.
type VideoHandle struct {
	ID          string  `json:"video_id"`
	URL         string  `json:"url"`
	Duration    float64 `json:"duration"`
	CurrentTime float64 `json:"current_time"`
}

// RecordingArtifact is a single contiguous audio capture, produced once by
// a capture session and consumed exactly once by transcription.
type RecordingArtifact struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// InteractionStatus holds the independent boolean flags surfaced to the
// presentation layer. Each flag reflects the true state of its underlying
// asynchronous operation.
type InteractionStatus struct {
	Listening bool `json:"listening"`
	Speaking  bool `json:"speaking"`
	Analyzing bool `json:"analyzing"`
}

// TeamSplit is a home/away pair for a single statistic
type TeamSplit struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// FormationPair names the formation each side is playing, e.g. "4-3-3"
type FormationPair struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// StatsSnapshot is the display-state refreshed from the analysis backend.
// It is not part of the conversational record.
type StatsSnapshot struct {
	Possession   TeamSplit      `json:"possession"`
	Shots        TeamSplit      `json:"shots"`
	PassAccuracy TeamSplit      `json:"passAccuracy"`
	Corners      TeamSplit      `json:"corners"`
	Fouls        TeamSplit      `json:"fouls"`
	Formations   *FormationPair `json:"formations,omitempty"`
	FetchedAt    time.Time      `json:"fetched_at,omitempty"`
}

// Player is a single tracked player position within a formation snapshot
type Player struct {
	Number   int     `json:"number"`
	Team     string  `json:"team"` // "home" or "away"
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Position string  `json:"position,omitempty"`
}

// TeamFormation is the positional layout of both sides at a point in time
type TeamFormation struct {
	Home      []Player `json:"home"`
	Away      []Player `json:"away"`
	Timestamp float64  `json:"timestamp,omitempty"`
}
