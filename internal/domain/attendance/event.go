package attendance

import (
	"fmt"
	"strings"
	"time"
)

// PhotoRef is the frozen camera frame attached to an event as evidence.
type PhotoRef struct {
	ID          string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	Digest      string
	CapturedAt  time.Time
}

func (p PhotoRef) Empty() bool {
	return len(p.Data) == 0
}

// LocationSnapshot is a location as handed over by a capture session or an
// external caller. Coordinates are optional here so that a display-only
// location can be detected and rejected during assembly.
type LocationSnapshot struct {
	Latitude        *float64
	Longitude       *float64
	AccuracyMeters  float64
	ResolvedAddress string
	ResolvedAt      *time.Time
	FixedAt         time.Time
	Stale           bool
}

// Location is the validated location stored on an event.
type Location struct {
	Latitude        float64
	Longitude       float64
	AccuracyMeters  float64
	ResolvedAddress string
	ResolvedAt      *time.Time
	FixedAt         time.Time
	Stale           bool
}

// AttendanceEvent is an evidentiary check-in or check-out.
type AttendanceEvent struct {
	ID              string
	SubjectID       string
	Kind            Kind
	CapturedAt      time.Time
	Photo           PhotoRef
	Location        *Location
	LocationFlagged bool
	SubmissionState SubmissionState
	Attempts        int
	LastError       string
	SubmittedAt     *time.Time
}

// BeginAttempt moves a pending or failed event into a new submission attempt.
func (e *AttendanceEvent) BeginAttempt() error {
	switch e.SubmissionState {
	case SubmissionSubmitted:
		return fmt.Errorf("%w: %s", ErrEventImmutable, e.ID)
	case SubmissionPending, SubmissionFailed, "":
		e.SubmissionState = SubmissionPending
		e.Attempts++
		e.LastError = ""
		return nil
	default:
		return fmt.Errorf("unknown submission state %q", e.SubmissionState)
	}
}

// Acknowledge records the gateway acknowledgement.
func (e *AttendanceEvent) Acknowledge(at time.Time) error {
	if e.SubmissionState != SubmissionPending {
		return fmt.Errorf("%w: %s is %s", ErrEventImmutable, e.ID, e.SubmissionState)
	}
	e.SubmissionState = SubmissionSubmitted
	ackAt := at.UTC()
	e.SubmittedAt = &ackAt
	return nil
}

// Fail records a gateway error. The evidence stays on the event for a retry.
func (e *AttendanceEvent) Fail(cause error) error {
	if e.SubmissionState != SubmissionPending {
		return fmt.Errorf("%w: %s is %s", ErrEventImmutable, e.ID, e.SubmissionState)
	}
	e.SubmissionState = SubmissionFailed
	if cause != nil {
		e.LastError = strings.TrimSpace(cause.Error())
	}
	return nil
}

// Day returns the calendar day the event belongs to.
func (e AttendanceEvent) Day(loc *time.Location) Date {
	return DateOf(e.CapturedAt, loc)
}
