package repositories

import (
	"context"
	"errors"
)

// Failure kinds a speech provider must distinguish. Callers classify with
// errors.Is.
var (
	// ErrCapabilityUnsupported means the provider lacks the requested
	// operation entirely (no recognition engine, no synthesis engine).
	ErrCapabilityUnsupported = errors.New("speech capability unsupported")
	// ErrProvider covers network and quota failures of a cloud provider.
	ErrProvider = errors.New("speech provider error")
	// ErrRecognition covers runtime recognition failures such as ambient
	// noise, silence, or timeout.
	ErrRecognition = errors.New("speech recognition error")
)

// SpeakOptions tunes synthesis playback
type SpeakOptions struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// SpeechCapability abstracts text-to-speech and speech-to-text across
// providers. Two variants conform: a cloud synthesis service, which returns
// a playable audio reference, and an on-device engine, whose liveness is
// queryable via IsSpeaking.
type SpeechCapability interface {
	// Speak synthesizes text and resolves when playback completes
	// naturally, or earlier on cancellation. It resolves exactly once per
	// invocation. The returned reference is an opaque playable URL; the
	// device variant returns an empty reference since it plays directly.
	Speak(ctx context.Context, text string, opts SpeakOptions) (string, error)
	// CancelSpeech stops in-flight playback immediately. Idempotent; safe
	// to call when not speaking.
	CancelSpeech()
	// IsSpeaking reports whether playback is currently in progress.
	IsSpeaking() bool
	// Listen captures a single utterance and resolves with one recognized
	// transcript. Not continuous, no interim results.
	Listen(ctx context.Context) (string, error)
}

// AudioStore exposes synthesized audio payloads at opaque playable URLs
// resolvable by the presentation layer.
type AudioStore interface {
	Put(data []byte, mimeType string) (string, error)
}

// RecognitionEngine converts one finalized audio capture to text. Injected
// into the device speech variant.
type RecognitionEngine interface {
	Recognize(ctx context.Context, audio []byte, config AudioConfig) (string, error)
}

// AudioConfig describes captured audio handed to a recognition engine
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
