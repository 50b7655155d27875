package speech

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/repositories"
)

// SynthesisEngine is a local playback engine (system TTS). Synthesize blocks
// until playback completes naturally or the context is cancelled.
type SynthesisEngine interface {
	Synthesize(ctx context.Context, text string, opts repositories.SpeakOptions) error
}

// UtteranceSource yields one finished utterance capture per call.
type UtteranceSource interface {
	CaptureUtterance(ctx context.Context) ([]byte, repositories.AudioConfig, error)
}

// DeviceSpeech is the on-device variant of the speech capability. Playback
// goes through a local synthesis engine whose liveness is queryable via
// IsSpeaking; recognition runs an injected engine over a single captured
// utterance. Either engine may be absent, in which case the corresponding
// operation reports the capability as unsupported.
type DeviceSpeech struct {
	synth      SynthesisEngine
	source     UtteranceSource
	recognizer repositories.RecognitionEngine
	logger     *zap.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
}

// Ensure DeviceSpeech implements the SpeechCapability interface
var _ repositories.SpeechCapability = (*DeviceSpeech)(nil)

// NewDeviceSpeech creates the on-device speech variant
func NewDeviceSpeech(synth SynthesisEngine, source UtteranceSource, recognizer repositories.RecognitionEngine, logger *zap.Logger) *DeviceSpeech {
	return &DeviceSpeech{
		synth:      synth,
		source:     source,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Speak plays text through the local engine, resolving when playback ends.
// The device variant plays directly, so the returned reference is empty.
func (d *DeviceSpeech) Speak(ctx context.Context, text string, opts repositories.SpeakOptions) (string, error) {
	if d.synth == nil {
		return "", fmt.Errorf("%w: no synthesis engine available", repositories.ErrCapabilityUnsupported)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.speaking = true
	d.cancel = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.speaking = false
		d.cancel = nil
		d.mu.Unlock()
		cancel()
	}()

	if err := d.synth.Synthesize(ctx, text, opts); err != nil {
		if ctx.Err() != nil {
			// Cancelled playback still resolves; the preference flip is
			// not an error condition.
			d.logger.Info("Speech playback cancelled")
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", repositories.ErrProvider, err)
	}

	return "", nil
}

// CancelSpeech stops in-flight playback immediately. Idempotent.
func (d *DeviceSpeech) CancelSpeech() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// IsSpeaking reports whether local playback is in progress
func (d *DeviceSpeech) IsSpeaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Listen captures a single utterance and recognizes it
func (d *DeviceSpeech) Listen(ctx context.Context) (string, error) {
	if d.source == nil || d.recognizer == nil {
		return "", fmt.Errorf("%w: no recognition engine available", repositories.ErrCapabilityUnsupported)
	}

	audio, config, err := d.source.CaptureUtterance(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repositories.ErrRecognition, err)
	}

	transcript, err := d.recognizer.Recognize(ctx, audio, config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repositories.ErrRecognition, err)
	}

	d.logger.Info("Utterance recognized", zap.String("transcript", transcript))
	return transcript, nil
}
