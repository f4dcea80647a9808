package attendance

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domain "sitepresence/internal/domain/attendance"
	"sitepresence/internal/infrastructure/persistence/sqlite/model"
	"sitepresence/internal/infrastructure/persistence/sqlite/repository"
	"sitepresence/internal/infrastructure/persistence/sqlite/uow"
	"sitepresence/internal/ports"
)

type flakyGateway struct {
	ports.SubmissionGateway
	mu    sync.Mutex
	fail  bool
	calls int
	// accepted runs after the underlying gateway took the event and may
	// replace its result.
	accepted func() error
}

func (g *flakyGateway) SubmitEvent(ctx context.Context, event domain.AttendanceEvent) error {
	g.mu.Lock()
	g.calls++
	fail := g.fail
	accepted := g.accepted
	g.mu.Unlock()
	if fail {
		return errors.New("gateway unavailable")
	}
	if err := g.SubmissionGateway.SubmitEvent(ctx, event); err != nil {
		return err
	}
	if accepted != nil {
		return accepted()
	}
	return nil
}

func (g *flakyGateway) setFail(fail bool) {
	g.mu.Lock()
	g.fail = fail
	g.mu.Unlock()
}

type serviceFixture struct {
	svc     *Service
	repo    *repository.AttendanceRepository
	gateway *flakyGateway
}

func setupService(t *testing.T) serviceFixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "attendance.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := repository.NewAttendanceRepository(db)
	gateway := &flakyGateway{SubmissionGateway: repo}
	svc := NewService(ServiceDeps{
		Gateway: gateway,
		Roster:  repo,
		Local:   repo,
		UoW:     uow.NewUnitOfWork(db),
	})
	return serviceFixture{svc: svc, repo: repo, gateway: gateway}
}

func checkIn(subjectID string, at time.Time) AssembleInput {
	return AssembleInput{
		Kind:       domain.KindCheckIn,
		Photo:      domain.PhotoRef{ContentType: "image/jpeg", Data: []byte{1}},
		SubjectID:  subjectID,
		CapturedAt: at,
	}
}

func TestRecordSubmitsEvent(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	event, err := f.svc.Record(ctx, checkIn("w1", time.Now().Add(-time.Minute)))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if event.SubmissionState != domain.SubmissionSubmitted || event.Attempts != 1 || event.SubmittedAt == nil {
		t.Fatalf("Record() = %+v", event)
	}

	local, err := f.repo.GetLocal(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetLocal() error = %v", err)
	}
	if local.SubmissionState != domain.SubmissionSubmitted {
		t.Fatalf("local copy state = %s", local.SubmissionState)
	}

	if _, err := f.svc.Retry(ctx, event.ID); !errors.Is(err, domain.ErrEventImmutable) {
		t.Fatalf("Retry(submitted) error = %v, want ErrEventImmutable", err)
	}
	if _, err := f.svc.Record(ctx, checkIn("w1", time.Now())); err != nil {
		t.Fatalf("Record() after submitted error = %v", err)
	}
}

func TestFailedEventKeepsEvidenceAndBlocksDuplicates(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.gateway.setFail(true)

	failed, err := f.svc.Record(ctx, checkIn("w1", time.Now().Add(-time.Minute)))
	if !errors.Is(err, domain.ErrSubmissionFailure) {
		t.Fatalf("Record() error = %v, want ErrSubmissionFailure", err)
	}
	if failed.SubmissionState != domain.SubmissionFailed || len(failed.Photo.Data) == 0 || failed.LastError == "" {
		t.Fatalf("failed event = %+v", failed)
	}

	if _, err := f.svc.Record(ctx, checkIn("w1", time.Now())); !errors.Is(err, domain.ErrUnresolvedLocalEvent) {
		t.Fatalf("Record() with unresolved copy error = %v, want ErrUnresolvedLocalEvent", err)
	}
	if f.gateway.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1 (no automatic retry)", f.gateway.calls)
	}

	f.gateway.setFail(false)
	retried, err := f.svc.Retry(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if retried.SubmissionState != domain.SubmissionSubmitted || retried.Attempts != 2 || retried.LastError != "" {
		t.Fatalf("Retry() = %+v", retried)
	}

	events, err := f.repo.ListEvents(ctx, "w1")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("ListEvents() len = %d, want exactly one accepted event", len(events))
	}
}

func TestSubmittedEventIsSavedAfterCallerCancels(t *testing.T) {
	f := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.accepted = func() error {
		cancel()
		return nil
	}

	event, err := f.svc.Record(ctx, checkIn("w1", time.Now().Add(-time.Minute)))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	local, err := f.repo.GetLocal(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("GetLocal() error = %v", err)
	}
	if local.SubmissionState != domain.SubmissionSubmitted || local.SubmittedAt == nil {
		t.Fatalf("local copy = %+v, want submitted", local)
	}
	if _, err := f.svc.Record(context.Background(), checkIn("w1", time.Now())); err != nil {
		t.Fatalf("Record() after cancelled ack error = %v", err)
	}
}

func TestRetryOfAcceptedEventAcknowledges(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.gateway.accepted = func() error { return errors.New("connection reset") }

	lost, err := f.svc.Record(ctx, checkIn("w1", time.Now().Add(-time.Minute)))
	if !errors.Is(err, domain.ErrSubmissionFailure) {
		t.Fatalf("Record() error = %v, want ErrSubmissionFailure", err)
	}

	f.gateway.accepted = nil
	retried, err := f.svc.Retry(ctx, lost.ID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if retried.SubmissionState != domain.SubmissionSubmitted || retried.LastError != "" {
		t.Fatalf("Retry() = %+v, want submitted", retried)
	}

	events, err := f.repo.ListEvents(ctx, "w1")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("ListEvents() len = %d, want 1", len(events))
	}
}

func TestDiscardUnblocksSubject(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.gateway.setFail(true)

	failed, _ := f.svc.Record(ctx, checkIn("w1", time.Now().Add(-time.Minute)))
	if err := f.svc.Discard(ctx, failed.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	f.gateway.setFail(false)
	if _, err := f.svc.Record(ctx, checkIn("w1", time.Now())); err != nil {
		t.Fatalf("Record() after discard error = %v", err)
	}
}

func TestRecordRejectsInvalidInputWithoutStaging(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	in := checkIn("w1", time.Now())
	in.Photo = domain.PhotoRef{}
	if _, err := f.svc.Record(ctx, in); !errors.Is(err, domain.ErrMissingEvidence) {
		t.Fatalf("Record() error = %v, want ErrMissingEvidence", err)
	}
	local, err := f.svc.ListLocal(ctx, "w1")
	if err != nil {
		t.Fatalf("ListLocal() error = %v", err)
	}
	if len(local) != 0 || f.gateway.calls != 0 {
		t.Fatalf("invalid input staged %d events, %d gateway calls", len(local), f.gateway.calls)
	}
}

func TestSiteSummaryScenario(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	day := domain.Date{Year: 2024, Month: time.January, Day: 1}

	for _, id := range []string{"w1", "w2", "w3", "w4"} {
		if err := f.repo.UpsertMember(ctx, ports.RosterMember{SiteID: "s1", SubjectID: id, Name: id}); err != nil {
			t.Fatalf("UpsertMember() error = %v", err)
		}
	}
	marks := []MarkInput{
		{SubjectID: "w1", Date: day, Status: domain.StatusPresent},
		{SubjectID: "w2", Date: day, Status: domain.StatusAbsent},
		{SubjectID: "w3", Date: day, Status: domain.StatusPresent},
		{SubjectID: "w3", Date: day, Status: domain.StatusAbsent},
	}
	for _, m := range marks {
		if _, err := f.svc.MarkDaily(ctx, m); err != nil {
			t.Fatalf("MarkDaily(%+v) error = %v", m, err)
		}
	}

	summary, err := f.svc.SiteSummary(ctx, "s1", day)
	if err != nil {
		t.Fatalf("SiteSummary() error = %v", err)
	}
	if summary.Present != 1 || summary.Absent != 2 || summary.NotMarked != 1 || summary.Total != 4 || summary.Percentage != 25 {
		t.Fatalf("SiteSummary() = %+v", summary)
	}

	report, err := f.svc.SubjectStatus(ctx, "w3", day)
	if err != nil {
		t.Fatalf("SubjectStatus() error = %v", err)
	}
	if report.Status != domain.StatusAbsent || len(report.History) != 2 || report.History[0].Status != domain.StatusAbsent {
		t.Fatalf("SubjectStatus() = %+v", report)
	}
}

func TestMarkDailyValidation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	day := domain.Date{Year: 2024, Month: time.January, Day: 1}

	if _, err := f.svc.MarkDaily(ctx, MarkInput{SubjectID: "w1", Date: day, Status: domain.StatusNotMarked}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("MarkDaily(not_marked) error = %v", err)
	}
	if _, err := f.svc.MarkDaily(ctx, MarkInput{SubjectID: "w1", Status: domain.StatusPresent}); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("MarkDaily(no date) error = %v", err)
	}
	if _, err := f.svc.MarkDaily(ctx, MarkInput{Date: day, Status: domain.StatusPresent}); !errors.Is(err, domain.ErrSubjectRequired) {
		t.Fatalf("MarkDaily(no subject) error = %v", err)
	}
}

func TestSubjectCalendarAndDayDetail(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	in := checkIn("w1", time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC))
	if _, err := f.svc.Record(ctx, in); err != nil {
		t.Fatalf("Record(check in) error = %v", err)
	}
	out := in
	out.Kind = domain.KindCheckOut
	out.CapturedAt = time.Date(2024, 1, 2, 17, 0, 0, 0, time.UTC)
	if _, err := f.svc.Record(ctx, out); err != nil {
		t.Fatalf("Record(check out) error = %v", err)
	}
	lonely := out
	lonely.CapturedAt = time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC)
	if _, err := f.svc.Record(ctx, lonely); err != nil {
		t.Fatalf("Record(lonely check out) error = %v", err)
	}

	days, err := f.svc.SubjectCalendar(ctx, "w1", 2024, time.January)
	if err != nil {
		t.Fatalf("SubjectCalendar() error = %v", err)
	}
	if len(days) != 31 {
		t.Fatalf("SubjectCalendar() len = %d, want 31", len(days))
	}
	if days[0].Class != domain.DayEmpty || days[1].Class != domain.DayFull || days[2].Class != domain.DayAnomalous {
		t.Fatalf("SubjectCalendar() = %+v", days[:3])
	}

	detail, err := f.svc.DayDetail(ctx, "w1", domain.Date{Year: 2024, Month: time.January, Day: 2})
	if err != nil {
		t.Fatalf("DayDetail() error = %v", err)
	}
	if detail.Classification.Class != domain.DayFull || len(detail.Events) != 2 || detail.Events[0].Kind != domain.KindCheckIn {
		t.Fatalf("DayDetail() = %+v", detail)
	}
	if detail.Status.Status != domain.StatusNotMarked {
		t.Fatalf("DayDetail() status = %s, want not_marked (events do not mark)", detail.Status.Status)
	}
}
