package lifecycle

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced through the platform's uniform error envelope.
// The HTTP layer maps these one-to-one; it never reinterprets engine failures.
const (
	CodeSessionInvalidState = "SES_INVALID_STATE"
	CodeRequestInvalidState = "REQ_INVALID_STATE"
	CodeSchedulingConflict  = "SES_CONFLICT"
	CodeAlreadyRescheduled  = "SES_ALREADY_RESCHEDULED"
	CodeDuplicateRating     = "SES_DUPLICATE_RATING"
	CodeValidation          = "VAL_INVALID"
	CodeInvalidInterval     = "VAL_INVALID_INTERVAL"
	CodeRatingOutOfRange    = "VAL_RATING_RANGE"
)

// InvalidTransitionError reports a state change that is not reachable from the
// entity's current state.
type InvalidTransitionError struct {
	Entity    string // "session" or "request"
	EntityID  string
	Current   string
	Requested string
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: %s %s cannot move from %s to %s", e.Entity, e.EntityID, e.Current, e.Requested)
}

// Code returns the stable error code for the failed entity kind.
func (e *InvalidTransitionError) Code() string {
	if e.Entity == "request" {
		return CodeRequestInvalidState
	}
	return CodeSessionInvalidState
}

// ConflictError reports that a proposed interval overlaps an existing
// committed session for the same interpreter.
type ConflictError struct {
	InterpreterID string
	ConflictsWith string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("lifecycle: interpreter %s is already booked by session %s", e.InterpreterID, e.ConflictsWith)
}

// Code returns the stable error code.
func (e *ConflictError) Code() string { return CodeSchedulingConflict }

// AlreadyRescheduledError reports an attempt to reschedule a session that
// already has a successor. A later reschedule must act on the newest session
// in the chain.
type AlreadyRescheduledError struct {
	SessionID   string
	SuccessorID string
}

// Error implements the error interface.
func (e *AlreadyRescheduledError) Error() string {
	return fmt.Sprintf("lifecycle: session %s was already rescheduled to %s", e.SessionID, e.SuccessorID)
}

// Code returns the stable error code.
func (e *AlreadyRescheduledError) Code() string { return CodeAlreadyRescheduled }

// DuplicateRatingError reports a second rating from the same actor for one session.
type DuplicateRatingError struct {
	SessionID string
	ActorID   string
}

// Error implements the error interface.
func (e *DuplicateRatingError) Error() string {
	return fmt.Sprintf("lifecycle: actor %s already rated session %s", e.ActorID, e.SessionID)
}

// Code returns the stable error code.
func (e *DuplicateRatingError) Code() string { return CodeDuplicateRating }

// ValidationError captures field level validation issues callers can surface
// to users. The code defaults to VAL_INVALID and is narrowed for well-known
// failures such as malformed intervals or out-of-range ratings.
type ValidationError struct {
	ErrCode     string
	FieldErrors map[string]string
}

// NewValidationError constructs an empty validation error with the given code.
func NewValidationError(code string) *ValidationError {
	if code == "" {
		code = CodeValidation
	}
	return &ValidationError{ErrCode: code}
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// Code returns the stable error code.
func (v *ValidationError) Code() string {
	if v == nil || v.ErrCode == "" {
		return CodeValidation
	}
	return v.ErrCode
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// coder is satisfied by every engine error carrying a stable code.
type coder interface {
	Code() string
}

// ErrorCode extracts the stable error code from an engine failure. It returns
// an empty string for errors the engine did not produce.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
