package workflow

import (
	"errors"
	"fmt"

	"requisition/internal/model"
)

var (
	// ErrUnauthorized is returned when the actor lacks capability for the transition or stage
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned when the request's stage/status does not admit the action
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict is returned when the request changed underneath the caller
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the request or a referenced entity is absent
	ErrNotFound = errors.New("not found")
)

// Error carries the failure kind plus the request state observed when it happened,
// so callers can tell the user what the request actually looks like.
type Error struct {
	Kind    error
	Message string
	Stage   model.Stage
	Status  model.Status
}

func (e *Error) Error() string {
	if e.Stage != "" || e.Status != "" {
		return fmt.Sprintf("%s: %s (request is at %s/%s)", e.Kind, e.Message, e.Stage, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, req *model.Request, format string, args ...interface{}) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if req != nil {
		e.Stage = req.WorkflowStage
		e.Status = req.Status
	}
	return e
}

func Unauthorized(req *model.Request, format string, args ...interface{}) *Error {
	return newError(ErrUnauthorized, req, format, args...)
}

func InvalidTransition(req *model.Request, format string, args ...interface{}) *Error {
	return newError(ErrInvalidTransition, req, format, args...)
}

func Conflict(req *model.Request, format string, args ...interface{}) *Error {
	return newError(ErrConflict, req, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newError(ErrValidation, nil, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, nil, format, args...)
}

// StateOf extracts the request state attached to an engine error, if any
func StateOf(err error) (model.Stage, model.Status, bool) {
	var werr *Error
	if errors.As(err, &werr) && (werr.Stage != "" || werr.Status != "") {
		return werr.Stage, werr.Status, true
	}
	return "", "", false
}
