package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitepresence/internal/bootstrap/logging"
	domain "sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	"sitepresence/internal/observability/metrics"
	"sitepresence/internal/ports"
)

// Service submits events and marks through the gateway and answers status
// queries from the roster store. Every caller derives status through it.
type Service struct {
	assembler *Assembler
	gateway   ports.SubmissionGateway
	roster    ports.RosterStore
	local     ports.LocalEventStore
	uow       ports.UnitOfWork
	location  *time.Location
	metrics   *metrics.AttendanceMetrics
	now       func() time.Time
}

type ServiceDeps struct {
	Assembler *Assembler
	Gateway   ports.SubmissionGateway
	Roster    ports.RosterStore
	Local     ports.LocalEventStore
	UoW       ports.UnitOfWork
	// Location decides the calendar day of events; nil means UTC.
	Location *time.Location
	Metrics  *metrics.AttendanceMetrics
}

func NewService(deps ServiceDeps) *Service {
	assembler := deps.Assembler
	if assembler == nil {
		assembler = NewAssembler(DefaultClockSkew)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		assembler: assembler,
		gateway:   deps.Gateway,
		roster:    deps.Roster,
		local:     deps.Local,
		uow:       deps.UoW,
		location:  loc,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.location
}

// Record assembles an event, keeps a local copy and submits it once. A
// subject with an unresolved local copy must retry or discard it first.
func (s *Service) Record(ctx context.Context, in AssembleInput) (domain.AttendanceEvent, error) {
	if err := checkContext(ctx); err != nil {
		return domain.AttendanceEvent{}, err
	}

	event, err := s.assembler.Assemble(in)
	if err != nil {
		return domain.AttendanceEvent{}, err
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		unresolved, err := s.local.ListLocal(txCtx, event.SubjectID, domain.SubmissionPending, domain.SubmissionFailed)
		if err != nil {
			return err
		}
		if len(unresolved) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrUnresolvedLocalEvent, unresolved[0].ID)
		}
		return s.local.SaveLocal(txCtx, event)
	}); err != nil {
		return domain.AttendanceEvent{}, err
	}

	return s.submit(ctx, event)
}

// Retry resubmits a pending or failed local copy. It is the only way a failed
// event is sent again.
func (s *Service) Retry(ctx context.Context, eventID string) (domain.AttendanceEvent, error) {
	if err := checkContext(ctx); err != nil {
		return domain.AttendanceEvent{}, err
	}

	event, err := s.local.GetLocal(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return domain.AttendanceEvent{}, err
	}
	if event.SubmissionState == domain.SubmissionSubmitted {
		return event, fmt.Errorf("%w: %s", domain.ErrEventImmutable, event.ID)
	}
	return s.submit(ctx, event)
}

// Discard drops a local copy so the subject can record again.
func (s *Service) Discard(ctx context.Context, eventID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := s.local.DiscardLocal(ctx, strings.TrimSpace(eventID)); err != nil {
		return err
	}
	logging.Info(logging.WithComponent(ctx, "usecase.attendance"), "local event discarded", slog.String("event_id", eventID))
	return nil
}

func (s *Service) ListLocal(ctx context.Context, subjectID string, states ...domain.SubmissionState) ([]domain.AttendanceEvent, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.local.ListLocal(ctx, subjectID, states...)
}

func (s *Service) submit(ctx context.Context, event domain.AttendanceEvent) (domain.AttendanceEvent, error) {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.attendance"),
		slog.String("event_id", event.ID),
		slog.String("subject_id", event.SubjectID),
		slog.String("kind", string(event.Kind)),
	)

	if err := event.BeginAttempt(); err != nil {
		return event, err
	}
	if err := s.local.SaveLocal(ctx, event); err != nil {
		return event, errs.Wrap(err, "save submission attempt")
	}

	submitErr := s.gateway.SubmitEvent(ctx, event)
	if errors.Is(submitErr, domain.ErrAlreadyAccepted) {
		logging.Info(logCtx, "gateway already holds event, treating as acknowledged")
		submitErr = nil
	}
	if submitErr != nil {
		_ = event.Fail(submitErr)
		s.metrics.RecordSubmission("event", string(domain.SubmissionFailed))
		logging.Warn(logCtx, "event submission failed",
			slog.Int("attempt", event.Attempts),
			slog.Any("err", errs.Loggable(submitErr)),
		)
		if err := s.local.SaveLocal(ctx, event); err != nil {
			return event, errors.Join(fmt.Errorf("%w: %w", domain.ErrSubmissionFailure, submitErr), errs.Wrap(err, "save failed event"))
		}
		return event, fmt.Errorf("%w: %w", domain.ErrSubmissionFailure, submitErr)
	}

	if err := event.Acknowledge(s.now()); err != nil {
		return event, err
	}
	s.metrics.RecordSubmission("event", string(domain.SubmissionSubmitted))
	// The gateway holds the event now; the local copy must follow even if the caller gave up.
	if err := s.local.SaveLocal(context.WithoutCancel(ctx), event); err != nil {
		return event, errs.Wrap(err, "save submitted event")
	}

	logging.Info(logCtx, "event submitted",
		slog.Int("attempt", event.Attempts),
		slog.Bool("location_flagged", event.LocationFlagged),
	)
	return event, nil
}

type MarkInput struct {
	SubjectID string
	Date      domain.Date
	Status    domain.Status
	MarkedBy  string
}

// MarkDaily appends a supervisor mark. Earlier marks of the day are kept; the
// newest one decides the status.
func (s *Service) MarkDaily(ctx context.Context, in MarkInput) (domain.DailyMark, error) {
	if err := checkContext(ctx); err != nil {
		return domain.DailyMark{}, err
	}
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		return domain.DailyMark{}, domain.ErrSubjectRequired
	}
	if in.Date.IsZero() {
		return domain.DailyMark{}, fmt.Errorf("%w: date is required", domain.ErrInvalidDate)
	}
	status, err := domain.ParseMarkStatus(string(in.Status))
	if err != nil {
		return domain.DailyMark{}, err
	}

	mark, err := s.gateway.SubmitMark(ctx, domain.DailyMark{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Date:      in.Date,
		Status:    status,
		MarkedBy:  strings.TrimSpace(in.MarkedBy),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.metrics.RecordSubmission("mark", string(domain.SubmissionFailed))
		return domain.DailyMark{}, fmt.Errorf("%w: %w", domain.ErrSubmissionFailure, err)
	}
	s.metrics.RecordSubmission("mark", string(domain.SubmissionSubmitted))

	logging.Info(logging.WithComponent(ctx, "usecase.attendance"), "daily mark recorded",
		slog.String("subject_id", subjectID),
		slog.String("date", in.Date.String()),
		slog.String("status", string(status)),
	)
	return mark, nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}
