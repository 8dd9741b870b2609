package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeWindowClosed represents attempts to crawl outside the permitted window
	ErrorTypeWindowClosed ErrorType = "window_closed"
	// ErrorTypeFetch represents rendering or network errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeExtraction represents element extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeValidation represents record validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeSink represents output sink errors
	ErrorTypeSink ErrorType = "sink"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeJob represents background job failures
	ErrorTypeJob ErrorType = "job"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	Scope   string // category or component the error belongs to
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Scope, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Scope, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error should fail the whole run.
// Window closures and per-element failures are recovered locally.
func (e *ScrapeError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeSink, ErrorTypeConfiguration, ErrorTypeJob:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, scope, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Scope:   scope,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewWindowClosed creates a new window-closed error
func NewWindowClosed(scope, message string) *ScrapeError {
	return New(ErrorTypeWindowClosed, scope, message, nil)
}

// NewFetch creates a new fetch error
func NewFetch(scope, message string, err error) *ScrapeError {
	return New(ErrorTypeFetch, scope, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(scope, message string) *ScrapeError {
	return New(ErrorTypeExtraction, scope, message, nil)
}

// NewValidation creates a new validation error
func NewValidation(scope, message string) *ScrapeError {
	return New(ErrorTypeValidation, scope, message, nil)
}

// NewSink creates a new sink error
func NewSink(message string, err error) *ScrapeError {
	return New(ErrorTypeSink, "sink", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(scope, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, scope, message, err)
}

// NewJob creates a new job failure error
func NewJob(jobID, message string, err error) *ScrapeError {
	return New(ErrorTypeJob, jobID, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsWindowClosed reports whether err is a window-closed error
func IsWindowClosed(err error) bool {
	return isType(err, ErrorTypeWindowClosed)
}

// IsFetch reports whether err is a fetch error
func IsFetch(err error) bool {
	return isType(err, ErrorTypeFetch)
}

func isType(err error, t ErrorType) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type == t
	}
	return false
}
