// Package errors defines the failure taxonomy shared by every stage of the
// ingestion service and maps errors onto the retry policy the consumer loop
// applies to them.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrConnection          = errors.New("connection error")
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("document not found")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("operation timed out")
	ErrUnexpected          = errors.New("unexpected error")
)

// Kind tells the caller whether retrying the same input can ever succeed.
type Kind int

const (
	// KindTransient failures may succeed on redelivery.
	KindTransient Kind = iota
	// KindPermanent failures can never succeed for the same input.
	KindPermanent
	// KindFatal failures stop the process.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// AppError attaches a human-readable message to one of the sentinel errors.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap keeps cause in the chain while tagging it with sentinel, so both
// errors.Is(err, sentinel) and errors.Is(err, cause) hold.
func Wrap(sentinel error, cause error, message string) error {
	if cause == nil {
		return New(sentinel, message)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, message, cause)
}

// Classify maps err onto a Kind. Unknown errors are transient so that an
// unrecognised failure mode is redelivered instead of silently dropped.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, ErrConfiguration):
		return KindFatal
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMalformedDocument):
		return KindPermanent
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrConnection),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnexpected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindTransient
	}
}

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	return err != nil && Classify(err) == KindPermanent
}
