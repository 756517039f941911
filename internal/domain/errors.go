package domain

import (
	"fmt"
)

// AppError is a tagged error carrying an HTTP-ish status and a stable code,
// used by the admin/debug API's error handler.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a wrapped AppError against one of the sentinel
// values above by Code, since WithError always allocates a new pointer.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors, grouped by the taxonomy in SPEC_FULL.md's error handling design.
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing admin token",
		StatusCode: 401,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Insufficient privileges for this operation",
		StatusCode: 403,
	}

	// Configuration errors — invalid template, missing required dependency.
	// Surfaced to the submitter at push time; no state mutated.
	ErrInvalidDebounceKey = &AppError{
		Code:       "INVALID_DEBOUNCE_KEY",
		Message:    "Resolved debounce key exceeds the maximum length",
		StatusCode: 422,
	}

	ErrInvalidSettings = &AppError{
		Code:       "INVALID_DEBOUNCE_SETTINGS",
		Message:    "Invalid debouncing settings",
		StatusCode: 422,
	}

	// Previous-survivor race: the job the engine tried to coalesce was
	// already terminal. Not fatal — the engine logs and proceeds.
	ErrSurvivorAlreadyTerminal = &AppError{
		Code:       "SURVIVOR_ALREADY_TERMINAL",
		Message:    "Previous survivor job was already in a terminal state",
		StatusCode: 409,
	}

	// Batch-tracker insert failed because the job was re-submitted into
	// another batch; the submission is aborted rather than corrupting
	// batch accounting.
	ErrBatchMembershipConflict = &AppError{
		Code:       "BATCH_MEMBERSHIP_CONFLICT",
		Message:    "Job already belongs to a different debounce batch",
		StatusCode: 409,
	}

	// Resource exhaustion — isolate heap or wall-clock timeout.
	ErrIsolateMemoryExhausted = &AppError{
		Code:       "ISOLATE_MEMORY_EXHAUSTED",
		Message:    "Isolate exceeded its memory limit",
		StatusCode: 507,
	}
)
