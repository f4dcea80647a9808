package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitepresence/internal/domain/attendance"
	domaincapture "sitepresence/internal/domain/capture"
	attendanceuc "sitepresence/internal/usecase/attendance"
)

// EventRecorder assembles, stores and submits an event.
type EventRecorder interface {
	Record(ctx context.Context, in attendanceuc.AssembleInput) (attendance.AttendanceEvent, error)
}

type RecordInput struct {
	SubjectID string
	Kind      attendance.Kind
	// AwaitLocation bounds how long to wait for the address after the photo;
	// zero uses the recorder default.
	AwaitLocation   time.Duration
	RequireLocation bool
}

type RecordResult struct {
	Event    attendance.AttendanceEvent
	Snapshot Snapshot
}

// Recorder runs one full capture: session, photo, location, submission.
type Recorder struct {
	orchestrator  *Orchestrator
	events        EventRecorder
	awaitLocation time.Duration
}

func NewRecorder(orchestrator *Orchestrator, events EventRecorder, awaitLocation time.Duration) *Recorder {
	if awaitLocation <= 0 {
		awaitLocation = orchestrator.opts.LocationTimeout
	}
	return &Recorder{orchestrator: orchestrator, events: events, awaitLocation: awaitLocation}
}

func (r *Recorder) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	if ctx == nil {
		return RecordResult{}, errors.New("context is required")
	}

	session, err := r.orchestrator.BeginSession(ctx, in.SubjectID, in.Kind)
	if err != nil {
		return RecordResult{}, err
	}
	defer r.orchestrator.EndSession(session)

	photo, err := r.orchestrator.CapturePhoto(ctx, session)
	if err != nil {
		return RecordResult{Snapshot: session.Snapshot()}, err
	}

	wait := in.AwaitLocation
	if wait <= 0 {
		wait = r.awaitLocation
	}
	awaitCtx, cancel := context.WithTimeout(ctx, wait)
	snap, _ := session.AwaitLocation(awaitCtx)
	cancel()
	if err := ctx.Err(); err != nil {
		return RecordResult{Snapshot: snap}, err
	}

	if in.RequireLocation && snap.Location == nil {
		cause := snap.LocationErr
		if cause == nil {
			cause = domaincapture.ErrLocationUnavailable
		}
		return RecordResult{Snapshot: snap}, fmt.Errorf("location is required: %w", cause)
	}

	event, err := r.events.Record(ctx, attendanceuc.AssembleInput{
		Kind:       in.Kind,
		Photo:      photo,
		Location:   snap.Location,
		SubjectID:  session.SubjectID,
		CapturedAt: photo.CapturedAt,
	})
	return RecordResult{Event: event, Snapshot: snap}, err
}
