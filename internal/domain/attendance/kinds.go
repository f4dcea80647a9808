package attendance

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindCheckIn  Kind = "check_in"
	KindCheckOut Kind = "check_out"
)

var kindAliases = map[string]Kind{
	"check_in":  KindCheckIn,
	"checkin":   KindCheckIn,
	"in":        KindCheckIn,
	"check_out": KindCheckOut,
	"checkout":  KindCheckOut,
	"out":       KindCheckOut,
}

func ParseKind(value string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if kind, ok := kindAliases[normalized]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, value)
}

func (k Kind) Valid() bool {
	return k == KindCheckIn || k == KindCheckOut
}

// Status is the derived attendance status of one subject on one day.
type Status string

const (
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
	StatusNotMarked Status = "not_marked"
)

// ParseMarkStatus accepts only the statuses a supervisor can enter.
func ParseMarkStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPresent:
		return StatusPresent, nil
	case StatusAbsent:
		return StatusAbsent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

type SubmissionState string

const (
	SubmissionPending   SubmissionState = "pending"
	SubmissionSubmitted SubmissionState = "submitted"
	SubmissionFailed    SubmissionState = "failed"
)

// Resolved reports whether no further submission work is expected for the state.
func (s SubmissionState) Resolved() bool {
	return s == SubmissionSubmitted
}
