package attendance

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
)

const rosterFetchConcurrency = 8

type StatusReport struct {
	SubjectID string
	Date      domain.Date
	Status    domain.Status
	// History holds the marks of Date, newest first.
	History []domain.DailyMark
}

func (s *Service) SubjectStatus(ctx context.Context, subjectID string, date domain.Date) (StatusReport, error) {
	if err := checkContext(ctx); err != nil {
		return StatusReport{}, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return StatusReport{}, domain.ErrSubjectRequired
	}

	marks, err := s.roster.ListMarks(ctx, subjectID)
	if err != nil {
		return StatusReport{}, errs.Wrap(err, "list marks")
	}
	return StatusReport{
		SubjectID: subjectID,
		Date:      date,
		Status:    domain.DeriveStatus(marks, date),
		History:   domain.MarkHistory(marks, date),
	}, nil
}

// SiteSummary derives every roster member's status on date and aggregates it.
func (s *Service) SiteSummary(ctx context.Context, siteID string, date domain.Date) (domain.Summary, error) {
	if err := checkContext(ctx); err != nil {
		return domain.Summary{}, err
	}

	members, err := s.roster.ListRoster(ctx, strings.TrimSpace(siteID))
	if err != nil {
		return domain.Summary{}, errs.Wrap(err, "list roster")
	}

	records := make([]domain.SubjectRecords, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterFetchConcurrency)
	for i, member := range members {
		g.Go(func() error {
			marks, err := s.roster.ListMarks(gctx, member.SubjectID)
			if err != nil {
				return errs.Wrapf(err, "list marks of %s", member.SubjectID)
			}
			records[i] = domain.SubjectRecords{
				SubjectID: member.SubjectID,
				Name:      member.Name,
				Marks:     marks,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Summary{}, err
	}

	return domain.Aggregate(records, date), nil
}

// SubjectCalendar classifies every day of a month from the subject's accepted events.
func (s *Service) SubjectCalendar(ctx context.Context, subjectID string, year int, month time.Month) ([]domain.DayClassification, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, domain.ErrInvalidDate
	}

	events, err := s.roster.ListEvents(ctx, strings.TrimSpace(subjectID))
	if err != nil {
		return nil, errs.Wrap(err, "list events")
	}
	first, last := domain.MonthRange(year, month)
	return domain.ClassifyRange(events, first, last, s.location), nil
}

type DayDetail struct {
	Classification domain.DayClassification
	// Events are the accepted events of the day in capture order.
	Events []domain.AttendanceEvent
	Status StatusReport
}

func (s *Service) DayDetail(ctx context.Context, subjectID string, date domain.Date) (DayDetail, error) {
	if err := checkContext(ctx); err != nil {
		return DayDetail{}, err
	}
	subjectID = strings.TrimSpace(subjectID)

	events, err := s.roster.ListEvents(ctx, subjectID)
	if err != nil {
		return DayDetail{}, errs.Wrap(err, "list events")
	}
	status, err := s.SubjectStatus(ctx, subjectID, date)
	if err != nil {
		return DayDetail{}, err
	}

	return DayDetail{
		Classification: domain.ClassifyDay(events, date, s.location),
		Events:         domain.GroupByDate(events, s.location)[date],
		Status:         status,
	}, nil
}
