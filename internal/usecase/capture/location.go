package capture

import (
	"context"
	"errors"
	"log/slog"

	"sitepresence/internal/bootstrap/logging"
	domaincapture "sitepresence/internal/domain/capture"
	"sitepresence/internal/errs"
	"sitepresence/internal/ports"
	"sitepresence/internal/usecase/geocode"
)

// startLocationLocked supersedes any in-flight request and starts a new one.
// The caller holds s.mu.
func (o *Orchestrator) startLocationLocked(s *Session) {
	if s.cancelLocation != nil {
		s.cancelLocation()
	}
	s.locationSeq++
	seq := s.locationSeq

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLocation = cancel
	s.locationPhase = domaincapture.LocationResolving
	s.notifyLocked()

	s.wg.Add(1)
	go o.runLocation(ctx, s, seq)
}

func (o *Orchestrator) runLocation(ctx context.Context, s *Session, seq uint64) {
	defer s.wg.Done()

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.capture"),
		slog.String("session_id", s.ID),
		slog.Uint64("location_seq", seq),
	)

	fixCtx, cancel := context.WithTimeout(ctx, o.opts.LocationTimeout)
	fix, err := o.locator.Fix(fixCtx, ports.FixRequest{
		HighAccuracy: true,
		Timeout:      o.opts.LocationTimeout,
		MaximumAge:   0,
	})
	timedOut := errors.Is(fixCtx.Err(), context.DeadlineExceeded)
	cancel()

	s.mu.Lock()
	if !o.currentLocked(s, seq) {
		s.mu.Unlock()
		o.opts.Metrics.RecordLocationOutcome("superseded")
		return
	}
	if err != nil {
		if timedOut && !errors.Is(err, domaincapture.ErrLocationTimeout) {
			err = errors.Join(domaincapture.ErrLocationTimeout, err)
		}
		o.applyLocationFailureLocked(s, err)
		s.mu.Unlock()
		o.opts.Metrics.RecordLocationOutcome(locationOutcome(err))
		logging.Warn(logCtx, "location fix failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	s.fix = &fix
	s.stale = false
	s.locationErr = nil
	s.address = ""
	s.addressFallback = false
	s.resolvedAt = nil
	s.locationPhase = domaincapture.LocationFixed
	s.notifyLocked()
	s.mu.Unlock()
	o.opts.Metrics.RecordLocationOutcome("fixed")

	var result geocode.AddressResult
	if o.resolver != nil {
		result = o.resolver.Resolve(ctx, fix.Latitude, fix.Longitude)
	} else {
		result = geocode.AddressResult{
			Address:    geocode.FallbackAddress(fix.Latitude, fix.Longitude),
			Fallback:   true,
			ResolvedAt: o.opts.Now().UTC(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !o.currentLocked(s, seq) {
		logging.Debug(logCtx, "discarded address of superseded location request")
		return
	}
	s.applyAddressLocked(result)
}

func (o *Orchestrator) currentLocked(s *Session, seq uint64) bool {
	return seq == s.locationSeq && s.phase != domaincapture.PhaseClosed
}

// applyLocationFailureLocked keeps an earlier fix as stale. A stale fix whose
// address lookup was abandoned gets the coordinate fallback.
func (o *Orchestrator) applyLocationFailureLocked(s *Session, err error) {
	s.locationErr = err
	if s.fix == nil {
		s.locationPhase = domaincapture.LocationNoFix
		s.notifyLocked()
		return
	}
	s.stale = true
	if s.address == "" {
		s.address = geocode.FallbackAddress(s.fix.Latitude, s.fix.Longitude)
		s.addressFallback = true
		resolvedAt := o.opts.Now().UTC()
		s.resolvedAt = &resolvedAt
	}
	s.locationPhase = domaincapture.LocationRefining
	s.notifyLocked()
}

func (s *Session) applyAddressLocked(result geocode.AddressResult) {
	s.address = result.Address
	s.addressFallback = result.Fallback
	resolvedAt := result.ResolvedAt.UTC()
	s.resolvedAt = &resolvedAt
	s.locationPhase = domaincapture.LocationRefining
	s.notifyLocked()
}

func locationOutcome(err error) string {
	switch {
	case errors.Is(err, domaincapture.ErrLocationTimeout):
		return "timeout"
	case errors.Is(err, domaincapture.ErrPermissionDenied):
		return "denied"
	default:
		return "unavailable"
	}
}
