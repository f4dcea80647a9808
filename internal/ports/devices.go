package ports

import (
	"context"
	"image"
	"time"
)

// Camera starts a live frame stream. Implementations return
// capture.ErrPermissionDenied when access is refused and
// capture.ErrDeviceUnavailable when the device cannot start.
// The ctx passed to Start lives as long as the capture session, so an
// implementation may tie the stream to it; it is cancelled when the session ends.
type Camera interface {
	Start(ctx context.Context) (CameraStream, error)
}

// CameraStream is a live camera. Close must be safe to call more than once.
type CameraStream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type FixRequest struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is the oldest cached fix the device may return; zero forces a fresh fix.
	MaximumAge time.Duration
}

type Fix struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Timestamp      time.Time
}

// Locator provides location fixes. Authorize checks permission without waiting
// for a fix. Fix returns capture.ErrLocationTimeout, capture.ErrLocationUnavailable
// or capture.ErrPermissionDenied on failure.
type Locator interface {
	Authorize(ctx context.Context) error
	Fix(ctx context.Context, req FixRequest) (Fix, error)
}
