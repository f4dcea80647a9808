package attendance

import "sitepresence/internal/errs"

var (
	ErrSubjectRequired   = errs.Coded("subject_required", "subject id is required")
	ErrInvalidKind       = errs.Coded("invalid_kind", "invalid attendance kind")
	ErrInvalidStatus     = errs.Coded("invalid_status", "invalid mark status")
	ErrInvalidDate       = errs.Coded("invalid_date", "invalid calendar date")
	ErrMissingEvidence   = errs.Coded("missing_evidence", "photo evidence is required")
	ErrMalformedLocation = errs.Coded("malformed_location", "location requires latitude and longitude")
	ErrCapturedInFuture  = errs.Coded("captured_in_future", "captured time is in the future")

	ErrSubmissionFailure    = errs.Coded("submission_failure", "submission to gateway failed")
	ErrEventImmutable       = errs.Coded("event_immutable", "submitted event cannot change")
	ErrUnresolvedLocalEvent = errs.Coded("unresolved_local_event", "subject has an unresolved local event; retry or discard it first")
	ErrEventNotFound        = errs.Coded("event_not_found", "attendance event not found")
	// ErrAlreadyAccepted is returned by a gateway that already holds the event.
	ErrAlreadyAccepted      = errs.Coded("already_accepted", "event was already accepted")
)
