package repository

import (
	"time"

	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	"sitepresence/internal/infrastructure/persistence/sqlite/model"
)

func toEventColumns(event attendance.AttendanceEvent) model.EventColumns {
	cols := model.EventColumns{
		SubjectID:        event.SubjectID,
		Kind:             string(event.Kind),
		CapturedAt:       event.CapturedAt.UTC(),
		PhotoID:          event.Photo.ID,
		PhotoContentType: event.Photo.ContentType,
		PhotoData:        event.Photo.Data,
		PhotoWidth:       event.Photo.Width,
		PhotoHeight:      event.Photo.Height,
		PhotoDigest:      event.Photo.Digest,
		PhotoCapturedAt:  event.Photo.CapturedAt.UTC(),
		LocationFlagged:  event.LocationFlagged,
	}
	if loc := event.Location; loc != nil {
		cols.HasLocation = true
		cols.Latitude = loc.Latitude
		cols.Longitude = loc.Longitude
		cols.AccuracyMeters = loc.AccuracyMeters
		cols.ResolvedAddress = loc.ResolvedAddress
		cols.ResolvedAt = utcPtr(loc.ResolvedAt)
		if !loc.FixedAt.IsZero() {
			fixedAt := loc.FixedAt.UTC()
			cols.FixedAt = &fixedAt
		}
		cols.LocationStale = loc.Stale
	}
	return cols
}

func fromEventColumns(eventID string, cols model.EventColumns) attendance.AttendanceEvent {
	event := attendance.AttendanceEvent{
		ID:         eventID,
		SubjectID:  cols.SubjectID,
		Kind:       attendance.Kind(cols.Kind),
		CapturedAt: cols.CapturedAt.UTC(),
		Photo: attendance.PhotoRef{
			ID:          cols.PhotoID,
			ContentType: cols.PhotoContentType,
			Data:        cols.PhotoData,
			Width:       cols.PhotoWidth,
			Height:      cols.PhotoHeight,
			Digest:      cols.PhotoDigest,
			CapturedAt:  cols.PhotoCapturedAt.UTC(),
		},
		LocationFlagged: cols.LocationFlagged,
	}
	if cols.HasLocation {
		loc := &attendance.Location{
			Latitude:        cols.Latitude,
			Longitude:       cols.Longitude,
			AccuracyMeters:  cols.AccuracyMeters,
			ResolvedAddress: cols.ResolvedAddress,
			ResolvedAt:      utcPtr(cols.ResolvedAt),
			Stale:           cols.LocationStale,
		}
		if cols.FixedAt != nil {
			loc.FixedAt = cols.FixedAt.UTC()
		}
		event.Location = loc
	}
	return event
}

func mapLocalEvent(row model.LocalEvent) attendance.AttendanceEvent {
	event := fromEventColumns(row.EventID, row.EventColumns)
	event.SubmissionState = attendance.SubmissionState(row.SubmissionState)
	event.Attempts = row.Attempts
	event.LastError = row.LastError
	event.SubmittedAt = utcPtr(row.SubmittedAt)
	return event
}

func mapDailyMark(row model.DailyMark) (attendance.DailyMark, error) {
	date, err := attendance.ParseDate(row.MarkDate)
	if err != nil {
		return attendance.DailyMark{}, errs.Wrapf(err, "parse mark %s date", row.MarkID)
	}
	return attendance.DailyMark{
		ID:        row.MarkID,
		SubjectID: row.SubjectID,
		Date:      date,
		Status:    attendance.Status(row.Status),
		MarkedBy:  row.MarkedBy,
		CreatedAt: row.CreatedAt.UTC(),
		Seq:       row.Seq,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
