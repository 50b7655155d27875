package api

import "time"

// SessionResponse represents the response payload for session creation
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
}

// UploadResponse represents the response payload for a video upload
type UploadResponse struct {
	VideoID string `json:"video_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
