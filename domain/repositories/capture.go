package repositories

import "context"

// CaptureDevice abstracts the microphone-like audio source feeding a voice
// capture session. Acquire reserves the device; a device is exclusively held
// by at most one session and must be released exactly once on every exit
// path.
type CaptureDevice interface {
	// Acquire reserves the device for one capture session. It fails when
	// the device is denied, unavailable, or already held.
	Acquire(ctx context.Context) error
	// Release returns the device. Releasing an unheld device is a no-op.
	Release()
	// MIMEType declares the media type of the chunks this device produces.
	MIMEType() string
}
