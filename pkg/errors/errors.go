package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes a crawl run distinguishes
type ErrorType string

const (
	ErrorTypeFormat         ErrorType = "format"
	ErrorTypeNavigation     ErrorType = "navigation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeChallenge      ErrorType = "challenge"
	ErrorTypeExtractionGap  ErrorType = "extraction_gap"
	ErrorTypePersistence    ErrorType = "persistence"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	URL     string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.URL != "" {
		msg += fmt.Sprintf(" (url: %s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so sentinel values like ErrChallenge work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.URL == "" && t.Err == nil
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// WithURL returns a copy of the error annotated with the URL involved
func (e *Error) WithURL(url string) *Error {
	cp := *e
	cp.URL = url
	return &cp
}

// Sentinels for errors.Is checks against a whole class
var (
	ErrFormat         = &Error{Type: ErrorTypeFormat}
	ErrNavigation     = &Error{Type: ErrorTypeNavigation}
	ErrAuthentication = &Error{Type: ErrorTypeAuthentication}
	ErrChallenge      = &Error{Type: ErrorTypeChallenge}
	ErrExtractionGap  = &Error{Type: ErrorTypeExtractionGap}
	ErrPersistence    = &Error{Type: ErrorTypePersistence}
)

// TypeOf returns the ErrorType of the first *Error in the chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypePersistence:
		return true
	default:
		return false
	}
}

// IsRunFatal reports whether an error type aborts a whole run rather than one source or item
func IsRunFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeAuthentication, ErrorTypeChallenge, ErrorTypeConfig:
		return true
	default:
		return false
	}
}

// IsSuccessStatus reports whether a navigation status code counts as loaded
func IsSuccessStatus(statusCode int64) bool {
	return statusCode >= 200 && statusCode < 300
}
