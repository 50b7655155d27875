package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

// CaptureState represents the lifecycle stage of a voice capture session
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateArmed     CaptureState = "armed"
	CaptureStateCapturing CaptureState = "capturing"
	CaptureStateStopped   CaptureState = "stopped"
)

// VoiceCaptureSession manages one recording lifecycle: acquire the capture
// device, accumulate audio chunks in arrival order, and finalize them into a
// single RecordingArtifact on stop. The device is released exactly once on
// every exit path, and the completion callback fires exactly once per
// started session.
type VoiceCaptureSession struct {
	device     repositories.CaptureDevice
	onComplete func(entities.RecordingArtifact)
	logger     *zap.Logger

	mu     sync.Mutex
	state  CaptureState
	buffer bytes.Buffer
}

// NewVoiceCaptureSession creates a session in the Idle state. onComplete
// receives the finalized artifact when the session stops.
func NewVoiceCaptureSession(device repositories.CaptureDevice, onComplete func(entities.RecordingArtifact), logger *zap.Logger) *VoiceCaptureSession {
	return &VoiceCaptureSession{
		device:     device,
		onComplete: onComplete,
		logger:     logger,
		state:      CaptureStateIdle,
	}
}

// State returns the session's current lifecycle stage
func (s *VoiceCaptureSession) State() CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start requests the capture device and begins accumulating audio. A device
// failure reports an error and returns the session to Idle.
func (s *VoiceCaptureSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != CaptureStateIdle {
		return fmt.Errorf("capture session already started")
	}

	s.state = CaptureStateArmed
	if err := s.device.Acquire(ctx); err != nil {
		s.state = CaptureStateIdle
		return fmt.Errorf("failed to acquire capture device: %w", err)
	}

	s.state = CaptureStateCapturing
	s.logger.Info("Voice capture started", zap.String("mimeType", s.device.MIMEType()))
	return nil
}

// Write appends an audio chunk in arrival order. Chunks outside the
// Capturing state are dropped.
func (s *VoiceCaptureSession) Write(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != CaptureStateCapturing {
		s.logger.Warn("Dropping audio chunk outside capture window",
			zap.String("state", string(s.state)),
			zap.Int("size", len(chunk)))
		return
	}

	s.buffer.Write(chunk)
}

// Stop finalizes the buffer into one RecordingArtifact, releases the device,
// and invokes the completion callback exactly once. Calling Stop when not
// capturing is a no-op, so a duplicate stop neither re-releases the device
// nor fires the callback again.
func (s *VoiceCaptureSession) Stop() {
	s.mu.Lock()
	if s.state != CaptureStateCapturing {
		s.mu.Unlock()
		return
	}

	s.state = CaptureStateStopped
	artifact := entities.RecordingArtifact{
		Data:     s.buffer.Bytes(),
		MIMEType: s.device.MIMEType(),
	}
	s.mu.Unlock()

	s.device.Release()

	s.logger.Info("Voice capture stopped", zap.Int("audioSize", len(artifact.Data)))

	if s.onComplete != nil {
		s.onComplete(artifact)
	}
}
