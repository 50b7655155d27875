package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pitchside/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Inbound, from the browser client
	MessageTypeQuery         MessageType = "query"
	MessageTypeListenStart   MessageType = "listen_start"
	MessageTypeListenEnd     MessageType = "listen_end"
	MessageTypeToggleSpeak   MessageType = "toggle_speaking"
	MessageTypeAttachVideo   MessageType = "attach_video"
	MessageTypePlaybackTime  MessageType = "playback_time"
	MessageTypeVoiceSettings MessageType = "voice_settings"
	MessageTypePing          MessageType = "ping"

	// Outbound, to the browser client
	MessageTypeMessage    MessageType = "message"
	MessageTypeStatus     MessageType = "status"
	MessageTypeStats      MessageType = "stats"
	MessageTypeSpeakAudio MessageType = "speak_audio"
	MessageTypeError      MessageType = "error"
	MessageTypePong       MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// QueryMessage carries a typed user question about the match
type QueryMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ListenStartMessage arms voice capture; binary frames that follow are
// audio chunks for the active session.
type ListenStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// ListenEndMessage finalizes the active voice capture session
type ListenEndMessage struct {
	BaseMessage
}

// ToggleSpeakMessage flips the spoken-response preference
type ToggleSpeakMessage struct {
	BaseMessage
}

// AttachVideoMessage binds previously uploaded footage to the conversation
type AttachVideoMessage struct {
	BaseMessage
	VideoID  string  `json:"video_id"`
	URL      string  `json:"url,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// PlaybackTimeMessage reports the viewer's current position in the footage
type PlaybackTimeMessage struct {
	BaseMessage
	Seconds float64 `json:"seconds"`
}

// VoiceSettingsMessage tunes the synthesis voice for spoken responses.
// Ranges follow the Web Speech API: rate 0.1-10, pitch 0-2, volume 0-1.
type VoiceSettingsMessage struct {
	BaseMessage
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// ChatMessage pushes one appended conversation entry to the client
type ChatMessage struct {
	BaseMessage
	Message entities.Message `json:"message"`
}

// StatusMessage pushes the interaction flags to the client
type StatusMessage struct {
	BaseMessage
	Status entities.InteractionStatus `json:"status"`
}

// StatsMessage pushes a match statistics snapshot to the client
type StatsMessage struct {
	BaseMessage
	Stats entities.StatsSnapshot `json:"stats"`
}

// SpeakAudioMessage points the client at synthesized speech for a response
type SpeakAudioMessage struct {
	BaseMessage
	AudioURL string `json:"audio_url"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for inbound WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an inbound message, returning the
// concrete typed message.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeQuery:
		var msg QueryMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid query message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeListenStart:
		var msg ListenStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listen_start message: %w", err)
		}
		if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
			return nil, fmt.Errorf("sample_rate must be between 8000 and 48000")
		}
		return &msg, nil

	case MessageTypeListenEnd:
		var msg ListenEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listen_end message: %w", err)
		}
		return &msg, nil

	case MessageTypeToggleSpeak:
		var msg ToggleSpeakMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid toggle_speaking message: %w", err)
		}
		return &msg, nil

	case MessageTypeAttachVideo:
		var msg AttachVideoMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid attach_video message: %w", err)
		}
		if msg.VideoID == "" {
			return nil, fmt.Errorf("video_id is required")
		}
		return &msg, nil

	case MessageTypePlaybackTime:
		var msg PlaybackTimeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid playback_time message: %w", err)
		}
		if msg.Seconds < 0 {
			return nil, fmt.Errorf("seconds must not be negative")
		}
		return &msg, nil

	case MessageTypeVoiceSettings:
		var msg VoiceSettingsMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid voice_settings message: %w", err)
		}
		if msg.Rate < 0.1 || msg.Rate > 10 {
			return nil, fmt.Errorf("rate must be between 0.1 and 10")
		}
		if msg.Pitch < 0 || msg.Pitch > 2 {
			return nil, fmt.Errorf("pitch must be between 0 and 2")
		}
		if msg.Volume < 0 || msg.Volume > 1 {
			return nil, fmt.Errorf("volume must be between 0 and 1")
		}
		return &msg, nil

	case MessageTypePing:
		var msg BaseMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateChatMessage wraps a conversation entry for transport
func CreateChatMessage(m entities.Message) *ChatMessage {
	return &ChatMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeMessage,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Message: m,
	}
}

// CreateStatusMessage wraps the interaction flags for transport
func CreateStatusMessage(status entities.InteractionStatus) *StatusMessage {
	return &StatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatus,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Status: status,
	}
}

// CreateStatsMessage wraps a statistics snapshot for transport
func CreateStatsMessage(stats entities.StatsSnapshot) *StatsMessage {
	return &StatsMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStats,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Stats: stats,
	}
}

// CreateSpeakAudioMessage wraps a synthesized speech reference for transport
func CreateSpeakAudioMessage(audioURL string) *SpeakAudioMessage {
	return &SpeakAudioMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakAudio,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		AudioURL: audioURL,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage() *BaseMessage {
	return &BaseMessage{
		Type:      MessageTypePong,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
