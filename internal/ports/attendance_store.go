package ports

import (
	"context"

	"sitepresence/internal/domain/attendance"
)

// SubmissionGateway accepts assembled records. It enforces no dedup key and no
// transaction across calls.
type SubmissionGateway interface {
	SubmitEvent(ctx context.Context, event attendance.AttendanceEvent) error
	// SubmitMark appends a mark and returns it with store-assigned Seq/CreatedAt.
	SubmitMark(ctx context.Context, mark attendance.DailyMark) (attendance.DailyMark, error)
}

type RosterMember struct {
	SiteID    string
	SubjectID string
	Name      string
	Role      string
}

type Site struct {
	SiteID   string
	Name     string
	Timezone string
}

// RosterStore is plain collection access to a site's roster and each subject's records.
type RosterStore interface {
	ListRoster(ctx context.Context, siteID string) ([]RosterMember, error)
	ListMarks(ctx context.Context, subjectID string) ([]attendance.DailyMark, error)
	ListEvents(ctx context.Context, subjectID string) ([]attendance.AttendanceEvent, error)
}

// RosterWriter maintains sites and roster membership.
type RosterWriter interface {
	UpsertSite(ctx context.Context, site Site) error
	UpsertMember(ctx context.Context, member RosterMember) error
	RemoveMembersExcept(ctx context.Context, siteID string, keepSubjectIDs []string) (int64, error)
}

// LocalEventStore keeps the client-side copy of events until the gateway acknowledges them.
type LocalEventStore interface {
	SaveLocal(ctx context.Context, event attendance.AttendanceEvent) error
	GetLocal(ctx context.Context, eventID string) (attendance.AttendanceEvent, error)
	ListLocal(ctx context.Context, subjectID string, states ...attendance.SubmissionState) ([]attendance.AttendanceEvent, error)
	DiscardLocal(ctx context.Context, eventID string) error
}
