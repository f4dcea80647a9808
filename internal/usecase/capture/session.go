package capture

import (
	"context"
	"sync"
	"time"

	"sitepresence/internal/domain/attendance"
	domaincapture "sitepresence/internal/domain/capture"
	"sitepresence/internal/ports"
)

// Session is one capture attempt for one subject. It is safe for concurrent
// use; device completions update it from background goroutines.
type Session struct {
	ID        string
	SubjectID string
	Kind      attendance.Kind
	StartedAt time.Time

	mu            sync.Mutex
	phase         domaincapture.Phase
	locationPhase domaincapture.LocationPhase
	stream        ports.CameraStream
	photo         *attendance.PhotoRef

	fix             *ports.Fix
	address         string
	addressFallback bool
	resolvedAt      *time.Time
	stale           bool
	locationErr     error

	// locationSeq orders location requests; only the newest may write.
	locationSeq    uint64
	cancelLocation context.CancelFunc

	ctx     context.Context
	cancel  context.CancelFunc
	changed chan struct{}
	wg      sync.WaitGroup
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	SessionID     string
	SubjectID     string
	Kind          attendance.Kind
	Phase         domaincapture.Phase
	LocationPhase domaincapture.LocationPhase
	Photo         *attendance.PhotoRef
	// Location is nil until a fix has been obtained.
	Location        *attendance.LocationSnapshot
	AddressFallback bool
	LocationErr     error
}

func newSession(id string, subjectID string, kind attendance.Kind, startedAt time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:            id,
		SubjectID:     subjectID,
		Kind:          kind,
		StartedAt:     startedAt,
		phase:         domaincapture.PhaseIdle,
		locationPhase: domaincapture.LocationNoFix,
		ctx:           ctx,
		cancel:        cancel,
		changed:       make(chan struct{}),
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// AwaitLocation blocks until location work settles (no fix, or a fix with an
// applied address), the session closes, or ctx ends. It returns the latest
// snapshot in every case; the error is ctx's.
func (s *Session) AwaitLocation(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.locationPhase.Settled() || s.phase == domaincapture.PhaseClosed {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:       s.ID,
		SubjectID:       s.SubjectID,
		Kind:            s.Kind,
		Phase:           s.phase,
		LocationPhase:   s.locationPhase,
		AddressFallback: s.addressFallback,
		LocationErr:     s.locationErr,
	}
	if s.photo != nil {
		photo := *s.photo
		snap.Photo = &photo
	}
	if s.fix != nil {
		lat, lon := s.fix.Latitude, s.fix.Longitude
		loc := &attendance.LocationSnapshot{
			Latitude:        &lat,
			Longitude:       &lon,
			AccuracyMeters:  s.fix.AccuracyMeters,
			ResolvedAddress: s.address,
			FixedAt:         s.fix.Timestamp,
			Stale:           s.stale,
		}
		if s.resolvedAt != nil {
			resolvedAt := *s.resolvedAt
			loc.ResolvedAt = &resolvedAt
		}
		snap.Location = loc
	}
	return snap
}

// notifyLocked wakes every AwaitLocation waiter.
func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) transitionLocked(to domaincapture.Phase) error {
	next, err := domaincapture.Transition(s.phase, to)
	if err != nil {
		return err
	}
	s.phase = next
	s.notifyLocked()
	return nil
}
