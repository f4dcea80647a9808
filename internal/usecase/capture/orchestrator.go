package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/domain/attendance"
	domaincapture "sitepresence/internal/domain/capture"
	"sitepresence/internal/errs"
	"sitepresence/internal/observability/metrics"
	"sitepresence/internal/ports"
	"sitepresence/internal/usecase/geocode"
)

const (
	defaultLocationTimeout = 15 * time.Second
	defaultMaxDimension    = 1280
	defaultJPEGQuality     = 80
)

// AddressResolver never fails; on error it returns a fallback address.
type AddressResolver interface {
	Resolve(ctx context.Context, latitude float64, longitude float64) geocode.AddressResult
}

type Options struct {
	LocationTimeout   time.Duration
	PhotoMaxDimension int
	JPEGQuality       int
	Metrics           *metrics.AttendanceMetrics
	Now               func() time.Time
}

// Orchestrator owns capture sessions: one active session per subject.
type Orchestrator struct {
	camera   ports.Camera
	locator  ports.Locator
	resolver AddressResolver
	opts     Options

	mu     sync.Mutex
	active map[string]*Session
}

// NewOrchestrator accepts a nil resolver; addresses then use the coordinate fallback.
func NewOrchestrator(camera ports.Camera, locator ports.Locator, resolver AddressResolver, opts Options) *Orchestrator {
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = defaultLocationTimeout
	}
	if opts.PhotoMaxDimension <= 0 {
		opts.PhotoMaxDimension = defaultMaxDimension
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		camera:   camera,
		locator:  locator,
		resolver: resolver,
		opts:     opts,
		active:   make(map[string]*Session),
	}
}

// BeginSession starts the camera and the first location request concurrently
// and returns a Ready session; the location request may still be in flight.
// Any session the subject still holds is closed first.
func (o *Orchestrator) BeginSession(ctx context.Context, subjectID string, kind attendance.Kind) (*Session, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, attendance.ErrSubjectRequired
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", attendance.ErrInvalidKind, kind)
	}

	s := newSession(uuid.NewString(), subjectID, kind, o.opts.Now().UTC())
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.capture"),
		slog.String("session_id", s.ID),
		slog.String("subject_id", subjectID),
		slog.String("kind", string(kind)),
	)

	o.mu.Lock()
	prev := o.active[subjectID]
	o.active[subjectID] = s
	o.mu.Unlock()
	if prev != nil {
		o.EndSession(prev)
		logging.Info(logCtx, "closed previous session of subject", slog.String("previous_session_id", prev.ID))
	}

	s.mu.Lock()
	err := s.transitionLocked(domaincapture.PhaseAcquiring)
	if err == nil {
		o.startLocationLocked(s)
	}
	s.mu.Unlock()
	if err != nil {
		o.release(s)
		return nil, err
	}

	stream, err := o.acquire(ctx, s)
	if err != nil {
		reason := errs.Code(err)
		o.opts.Metrics.RecordSessionFailure(reason)
		logging.Warn(logCtx, "capture session failed to start", slog.Any("err", errs.Loggable(err)))
		o.EndSession(s)
		return nil, err
	}

	s.mu.Lock()
	if s.phase == domaincapture.PhaseClosed {
		// Force-closed by a newer session while acquiring.
		s.mu.Unlock()
		_ = stream.Close()
		return nil, domaincapture.ErrSessionClosed
	}
	s.stream = stream
	if err := s.transitionLocked(domaincapture.PhaseReady); err != nil {
		s.mu.Unlock()
		o.EndSession(s)
		return nil, err
	}
	s.mu.Unlock()

	o.opts.Metrics.RecordSessionStarted(string(kind))
	logging.Info(logCtx, "capture session ready")
	return s, nil
}

// acquire starts the camera and checks location permission without either
// waiting on the other. Both run on the session context, so the stream lives
// until the session ends; ctx only bounds the acquisition itself.
func (o *Orchestrator) acquire(ctx context.Context, s *Session) (ports.CameraStream, error) {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	var (
		stream  ports.CameraStream
		authErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		st, err := o.camera.Start(s.ctx)
		if err != nil {
			s.cancel()
			return classifyCameraError(err)
		}
		stream = st
		return nil
	})
	g.Go(func() error {
		err := o.locator.Authorize(s.ctx)
		if errors.Is(err, domaincapture.ErrPermissionDenied) {
			authErr = err
			s.cancel()
			return err
		}
		// Location problems other than a refusal are not terminal here;
		// the fix request reports them.
		return nil
	})
	err := g.Wait()
	if err == nil && !stop() {
		err = errs.Wrap(ctx.Err(), "acquire capture devices")
	}
	if err != nil {
		if stream != nil {
			_ = stream.Close()
		}
		if authErr != nil {
			return nil, authErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
			return nil, errs.Wrap(ctxErr, "acquire capture devices")
		}
		return nil, err
	}
	return stream, nil
}

func classifyCameraError(err error) error {
	switch {
	case errors.Is(err, domaincapture.ErrPermissionDenied), errors.Is(err, domaincapture.ErrDeviceUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domaincapture.ErrDeviceUnavailable, err)
	}
}

// RefreshLocation requests a fresh fix without touching the camera. The new
// request supersedes any in-flight one.
func (o *Orchestrator) RefreshLocation(s *Session) error {
	if s == nil {
		return errors.New("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == domaincapture.PhaseClosed {
		return domaincapture.ErrSessionClosed
	}
	o.startLocationLocked(s)
	return nil
}

// CapturePhoto freezes the current frame. It never waits on location; a second
// call while Captured retakes the photo.
func (o *Orchestrator) CapturePhoto(ctx context.Context, s *Session) (attendance.PhotoRef, error) {
	if ctx == nil {
		return attendance.PhotoRef{}, errors.New("context is required")
	}
	if s == nil {
		return attendance.PhotoRef{}, errors.New("session is required")
	}

	s.mu.Lock()
	if !s.phase.HasStream() || s.stream == nil {
		phase := s.phase
		s.mu.Unlock()
		return attendance.PhotoRef{}, fmt.Errorf("%w: session is %s", domaincapture.ErrNoActiveStream, phase)
	}
	stream := s.stream
	s.mu.Unlock()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return attendance.PhotoRef{}, errs.Wrap(err, "read camera frame")
	}
	photo, err := encodePhoto(frame, o.opts.PhotoMaxDimension, o.opts.JPEGQuality, o.opts.Now().UTC())
	if err != nil {
		return attendance.PhotoRef{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.HasStream() {
		return attendance.PhotoRef{}, fmt.Errorf("%w: session is %s", domaincapture.ErrNoActiveStream, s.phase)
	}
	if err := s.transitionLocked(domaincapture.PhaseCaptured); err != nil {
		return attendance.PhotoRef{}, err
	}
	s.photo = &photo
	return photo, nil
}

// EndSession releases the camera and abandons location work, returning once no
// location request of the session is still running. It is idempotent.
func (o *Orchestrator) EndSession(s *Session) {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.phase == domaincapture.PhaseClosed {
		s.mu.Unlock()
		return
	}
	hadStream := s.stream != nil
	_ = s.transitionLocked(domaincapture.PhaseClosed)
	if s.cancelLocation != nil {
		s.cancelLocation()
		s.cancelLocation = nil
	}
	s.cancel()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			logging.Warn(
				logging.WithAttrs(context.Background(), slog.String("component", "usecase.capture"), slog.String("session_id", s.ID)),
				"close camera stream failed",
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	if hadStream {
		o.opts.Metrics.RecordSessionClosed()
	}
	o.release(s)
	s.wg.Wait()
}

// Close ends every active session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	sessions := make([]*Session, 0, len(o.active))
	for _, s := range o.active {
		sessions = append(sessions, s)
	}
	o.mu.Unlock()

	for _, s := range sessions {
		o.EndSession(s)
	}
}

// Active returns the subject's open session, if any.
func (o *Orchestrator) Active(subjectID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.active[strings.TrimSpace(subjectID)]
	return s, ok
}

func (o *Orchestrator) release(s *Session) {
	o.mu.Lock()
	if o.active[s.SubjectID] == s {
		delete(o.active, s.SubjectID)
	}
	o.mu.Unlock()
}
