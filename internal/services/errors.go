package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the HTTP layer can pick a status code.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindExtraction   ErrorKind = "extraction"
	KindUpstream     ErrorKind = "upstream"
	KindPersistence  ErrorKind = "persistence"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindInternal     ErrorKind = "internal"
)

var (
	// ErrMalformedAnalysis means the model answered with something that is not
	// an analysis object. The analyzer recovers from it with a fallback task.
	ErrMalformedAnalysis = errors.New("malformed analysis")
	ErrNotPDF            = errors.New("upload is not a pdf")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Error is returned by every service operation that fails in a way the
// caller should see. Message is safe to show to end users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "Internal server error"
}
