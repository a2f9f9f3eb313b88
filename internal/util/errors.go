package util

import "errors"

var (
	ErrModeNotFound      = errors.New("teaching mode not found or disabled")
	ErrLanguageNotFound  = errors.New("language not supported")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrSessionExpired    = errors.New("session has expired")
	ErrActiveSessionOpen = errors.New("user already has an active session")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrEngineUnavailable = errors.New("conversation engine unavailable")
	ErrLedgerLocked      = errors.New("progress ledger busy for user")
	ErrSummaryNotFound   = errors.New("session summary not found")
	ErrInvalidRubric     = errors.New("invalid rubric configuration")
	ErrPermissionDenied  = errors.New("permission denied")
)
