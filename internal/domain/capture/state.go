package capture

import "fmt"

// Phase is the main capture session state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAcquiring Phase = "acquiring"
	PhaseReady     Phase = "ready"
	PhaseCaptured  Phase = "captured"
	PhaseClosed    Phase = "closed"
)

var allowedTransitions = map[Phase]map[Phase]struct{}{
	PhaseIdle:      {PhaseAcquiring: {}, PhaseClosed: {}},
	PhaseAcquiring: {PhaseReady: {}, PhaseClosed: {}},
	PhaseReady:     {PhaseCaptured: {}, PhaseClosed: {}},
	PhaseCaptured:  {PhaseCaptured: {}, PhaseClosed: {}},
	PhaseClosed:    {PhaseClosed: {}},
}

// Transition validates a move between phases. Closing is legal from any phase
// and closing twice is a no-op.
func Transition(from, to Phase) (Phase, error) {
	next, ok := allowedTransitions[from]
	if !ok {
		return from, fmt.Errorf("%w: unknown phase %q", ErrIllegalTransition, from)
	}
	if _, ok := next[to]; !ok {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}

// HasStream reports whether the camera stream is live in p.
func (p Phase) HasStream() bool {
	return p == PhaseReady || p == PhaseCaptured
}

// LocationPhase is the orthogonal location sub-state of a session.
type LocationPhase string

const (
	LocationNoFix     LocationPhase = "no_fix"
	LocationResolving LocationPhase = "resolving"
	// LocationFixed has coordinates; the address lookup is still running.
	LocationFixed LocationPhase = "fixed"
	// LocationRefining has coordinates plus an applied address (resolved or fallback).
	LocationRefining LocationPhase = "refining"
)

// Settled reports whether no location work is outstanding in p.
func (p LocationPhase) Settled() bool {
	return p == LocationNoFix || p == LocationRefining
}
