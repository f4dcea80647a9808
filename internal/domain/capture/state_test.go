package capture

import (
	"errors"
	"testing"
)

func TestTransitionHappyPath(t *testing.T) {
	phase := PhaseIdle
	for _, next := range []Phase{PhaseAcquiring, PhaseReady, PhaseCaptured, PhaseCaptured, PhaseClosed, PhaseClosed} {
		got, err := Transition(phase, next)
		if err != nil {
			t.Fatalf("Transition(%s, %s) error = %v", phase, next, err)
		}
		phase = got
	}
	if phase != PhaseClosed {
		t.Fatalf("final phase = %s, want closed", phase)
	}
}

func TestTransitionCloseFromAnyPhase(t *testing.T) {
	for _, from := range []Phase{PhaseIdle, PhaseAcquiring, PhaseReady, PhaseCaptured, PhaseClosed} {
		if _, err := Transition(from, PhaseClosed); err != nil {
			t.Fatalf("Transition(%s, closed) error = %v", from, err)
		}
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	cases := [][2]Phase{
		{PhaseIdle, PhaseCaptured},
		{PhaseAcquiring, PhaseCaptured},
		{PhaseClosed, PhaseReady},
		{PhaseCaptured, PhaseAcquiring},
		{Phase("bogus"), PhaseClosed},
	}
	for _, tc := range cases {
		got, err := Transition(tc[0], tc[1])
		if !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("Transition(%s, %s) error = %v, want ErrIllegalTransition", tc[0], tc[1], err)
		}
		if got != tc[0] {
			t.Fatalf("Transition(%s, %s) phase = %s, want unchanged", tc[0], tc[1], got)
		}
	}
}

func TestLocationPhaseSettled(t *testing.T) {
	if LocationResolving.Settled() || LocationFixed.Settled() {
		t.Fatalf("resolving/fixed must not be settled")
	}
	if !LocationNoFix.Settled() || !LocationRefining.Settled() {
		t.Fatalf("no_fix/refining must be settled")
	}
}
