package capture

import "sitepresence/internal/errs"

var (
	// Terminal for a session.
	ErrPermissionDenied  = errs.Coded("permission_denied", "device permission denied")
	ErrDeviceUnavailable = errs.Coded("device_unavailable", "camera unavailable")

	// Non-terminal; the session continues without a fresh fix.
	ErrLocationTimeout     = errs.Coded("location_timeout", "location fix timed out")
	ErrLocationUnavailable = errs.Coded("location_unavailable", "location unavailable")

	ErrNoActiveStream    = errs.Coded("no_active_stream", "no active camera stream")
	ErrSessionClosed     = errs.Coded("session_closed", "capture session is closed")
	ErrIllegalTransition = errs.Coded("illegal_transition", "illegal capture session transition")
)
