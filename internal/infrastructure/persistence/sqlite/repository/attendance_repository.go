package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	"sitepresence/internal/infrastructure/persistence/sqlite/model"
	"sitepresence/internal/ports"
)

// AttendanceRepository is the gorm-backed store. It acts as the submission
// gateway, the roster store and the local copy of unsubmitted events.
type AttendanceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ ports.SubmissionGateway = (*AttendanceRepository)(nil)
	_ ports.RosterStore       = (*AttendanceRepository)(nil)
	_ ports.RosterWriter      = (*AttendanceRepository)(nil)
	_ ports.LocalEventStore   = (*AttendanceRepository)(nil)
)

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: time.Now}
}

func (r *AttendanceRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *AttendanceRepository) SubmitEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("event id is required")
	}

	row := model.AttendanceEvent{
		EventID:      event.ID,
		EventColumns: toEventColumns(event),
		SubmittedAt:  r.now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		var existing int64
		if countErr := db.Model(&model.AttendanceEvent{}).Where("event_id = ?", event.ID).Count(&existing).Error; countErr == nil && existing > 0 {
			return fmt.Errorf("%w: %s", attendance.ErrAlreadyAccepted, event.ID)
		}
		return errs.WithStack(errs.Wrapf(err, "insert attendance event %s", event.ID))
	}
	return nil
}

func (r *AttendanceRepository) SubmitMark(ctx context.Context, mark attendance.DailyMark) (attendance.DailyMark, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return attendance.DailyMark{}, err
	}
	if strings.TrimSpace(mark.SubjectID) == "" {
		return attendance.DailyMark{}, attendance.ErrSubjectRequired
	}

	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = r.now()
	}
	mark.CreatedAt = mark.CreatedAt.UTC()

	row := model.DailyMark{
		MarkID:    mark.ID,
		SubjectID: mark.SubjectID,
		MarkDate:  mark.Date.String(),
		Status:    string(mark.Status),
		MarkedBy:  mark.MarkedBy,
		CreatedAt: mark.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return attendance.DailyMark{}, errs.Wrap(err, "insert daily mark")
	}

	mark.Seq = row.Seq
	return mark, nil
}

func (r *AttendanceRepository) ListMarks(ctx context.Context, subjectID string) ([]attendance.DailyMark, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.DailyMark
	if err := db.
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query daily marks")
	}

	marks := make([]attendance.DailyMark, 0, len(rows))
	for _, row := range rows {
		mark, err := mapDailyMark(row)
		if err != nil {
			return nil, err
		}
		marks = append(marks, mark)
	}
	return marks, nil
}

func (r *AttendanceRepository) ListEvents(ctx context.Context, subjectID string) ([]attendance.AttendanceEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AttendanceEvent
	if err := db.
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Order("captured_at asc").
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query attendance events")
	}

	events := make([]attendance.AttendanceEvent, 0, len(rows))
	for _, row := range rows {
		event := fromEventColumns(row.EventID, row.EventColumns)
		event.SubmissionState = attendance.SubmissionSubmitted
		submittedAt := row.SubmittedAt.UTC()
		event.SubmittedAt = &submittedAt
		events = append(events, event)
	}
	return events, nil
}

func (r *AttendanceRepository) SaveLocal(ctx context.Context, event attendance.AttendanceEvent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("event id is required")
	}

	row := model.LocalEvent{
		EventID:         event.ID,
		EventColumns:    toEventColumns(event),
		SubmissionState: string(event.SubmissionState),
		Attempts:        event.Attempts,
		LastError:       event.LastError,
		SubmittedAt:     utcPtr(event.SubmittedAt),
		UpdatedAt:       r.now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"submission_state",
			"attempts",
			"last_error",
			"submitted_at",
			"updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "save local event %s", event.ID)
	}
	return nil
}

func (r *AttendanceRepository) GetLocal(ctx context.Context, eventID string) (attendance.AttendanceEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return attendance.AttendanceEvent{}, err
	}

	var row model.LocalEvent
	if err := db.Where("event_id = ?", strings.TrimSpace(eventID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return attendance.AttendanceEvent{}, fmt.Errorf("%w: %s", attendance.ErrEventNotFound, eventID)
		}
		return attendance.AttendanceEvent{}, errs.Wrap(err, "query local event")
	}
	return mapLocalEvent(row), nil
}

func (r *AttendanceRepository) ListLocal(ctx context.Context, subjectID string, states ...attendance.SubmissionState) ([]attendance.AttendanceEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.LocalEvent{})
	if trimmed := strings.TrimSpace(subjectID); trimmed != "" {
		query = query.Where("subject_id = ?", trimmed)
	}
	if len(states) > 0 {
		values := make([]string, 0, len(states))
		for _, state := range states {
			values = append(values, string(state))
		}
		query = query.Where("submission_state IN ?", values)
	}

	var rows []model.LocalEvent
	if err := query.Order("captured_at asc").Order("event_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query local events")
	}

	events := make([]attendance.AttendanceEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, mapLocalEvent(row))
	}
	return events, nil
}

func (r *AttendanceRepository) DiscardLocal(ctx context.Context, eventID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("event_id = ?", strings.TrimSpace(eventID)).Delete(&model.LocalEvent{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete local event")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", attendance.ErrEventNotFound, eventID)
	}
	return nil
}
