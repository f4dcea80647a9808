package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domain "sitepresence/internal/domain/attendance"
)

const DefaultClockSkew = 2 * time.Minute

// AssembleInput carries a frozen photo and a location snapshot into an event.
type AssembleInput struct {
	Kind      domain.Kind
	Photo     domain.PhotoRef
	Location  *domain.LocationSnapshot
	SubjectID string
	// CapturedAt defaults to the current time when zero.
	CapturedAt time.Time
}

type locationRules struct {
	Latitude       *float64 `validate:"required,gte=-90,lte=90"`
	Longitude      *float64 `validate:"required,gte=-180,lte=180"`
	AccuracyMeters float64  `validate:"gte=0"`
}

// Assembler validates capture output and builds pending events. It has no
// side effects, so assembly can be repeated without touching the camera.
type Assembler struct {
	validate  *validator.Validate
	clockSkew time.Duration
	now       func() time.Time
	newID     func() string
}

func NewAssembler(clockSkew time.Duration) *Assembler {
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Assembler{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		clockSkew: clockSkew,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (a *Assembler) Assemble(in AssembleInput) (domain.AttendanceEvent, error) {
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		return domain.AttendanceEvent{}, domain.ErrSubjectRequired
	}
	if !in.Kind.Valid() {
		return domain.AttendanceEvent{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, in.Kind)
	}
	if in.Photo.Empty() {
		return domain.AttendanceEvent{}, domain.ErrMissingEvidence
	}

	now := a.now()
	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}
	if capturedAt.After(now.Add(a.clockSkew)) {
		return domain.AttendanceEvent{}, fmt.Errorf("%w: %s is after %s", domain.ErrCapturedInFuture,
			capturedAt.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}

	location, err := a.location(in.Location)
	if err != nil {
		return domain.AttendanceEvent{}, err
	}

	photo := in.Photo
	if photo.ID == "" {
		photo.ID = a.newID()
	}
	if photo.CapturedAt.IsZero() {
		photo.CapturedAt = capturedAt
	}

	return domain.AttendanceEvent{
		ID:              a.newID(),
		SubjectID:       subjectID,
		Kind:            in.Kind,
		CapturedAt:      capturedAt.UTC(),
		Photo:           photo,
		Location:        location,
		LocationFlagged: location == nil || location.Stale,
		SubmissionState: domain.SubmissionPending,
	}, nil
}

func (a *Assembler) location(snapshot *domain.LocationSnapshot) (*domain.Location, error) {
	if snapshot == nil {
		return nil, nil
	}

	rules := locationRules{
		Latitude:       snapshot.Latitude,
		Longitude:      snapshot.Longitude,
		AccuracyMeters: snapshot.AccuracyMeters,
	}
	if err := a.validate.Struct(rules); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedLocation, describeValidation(err))
	}

	return &domain.Location{
		Latitude:        *snapshot.Latitude,
		Longitude:       *snapshot.Longitude,
		AccuracyMeters:  snapshot.AccuracyMeters,
		ResolvedAddress: strings.TrimSpace(snapshot.ResolvedAddress),
		ResolvedAt:      snapshot.ResolvedAt,
		FixedAt:         snapshot.FixedAt,
		Stale:           snapshot.Stale,
	}, nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
