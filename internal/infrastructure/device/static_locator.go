package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitepresence/internal/domain/capture"
	"sitepresence/internal/errs"
	"sitepresence/internal/ports"
)

// StaticLocator reports a fixed position, as entered on a kiosk or passed on
// the command line. A nil position behaves like a device with no signal.
type StaticLocator struct {
	Latitude       *float64
	Longitude      *float64
	AccuracyMeters float64
	// Delay simulates time to first fix.
	Delay  time.Duration
	Denied bool
	Now    func() time.Time
}

var _ ports.Locator = (*StaticLocator)(nil)

func (l *StaticLocator) Authorize(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if l.Denied {
		return fmt.Errorf("%w: location", capture.ErrPermissionDenied)
	}
	return nil
}

func (l *StaticLocator) Fix(ctx context.Context, req ports.FixRequest) (ports.Fix, error) {
	if err := l.Authorize(ctx); err != nil {
		return ports.Fix{}, err
	}

	if l.Delay > 0 {
		wait := l.Delay
		timedOut := req.Timeout > 0 && req.Timeout < wait
		if timedOut {
			wait = req.Timeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ports.Fix{}, errs.Wrap(ctx.Err(), "wait for fix")
		case <-timer.C:
		}
		if timedOut {
			return ports.Fix{}, capture.ErrLocationTimeout
		}
	}

	if l.Latitude == nil || l.Longitude == nil {
		return ports.Fix{}, capture.ErrLocationUnavailable
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	return ports.Fix{
		Latitude:       *l.Latitude,
		Longitude:      *l.Longitude,
		AccuracyMeters: l.AccuracyMeters,
		Timestamp:      now().UTC(),
	}, nil
}
