package resolver

import (
	"context"
	"errors"
)

var (
	// ErrValidation marks a missing or malformed parameter.
	ErrValidation = errors.New("invalid query parameters")
	// ErrInjectedFailure marks a simulated network or service failure.
	ErrInjectedFailure = errors.New("simulated upstream failure")
	// ErrUnknownOperation marks a query name outside the supported set.
	ErrUnknownOperation = errors.New("unrecognized query")
)

// ErrorKind is the transport-level classification of a resolver error.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindFailure    ErrorKind = "failure"
	KindUnknown    ErrorKind = "unknown_operation"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
)

func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInjectedFailure):
		return KindFailure
	case errors.Is(err, ErrUnknownOperation):
		return KindUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// SentinelFor is the inverse of Kind. It returns nil for KindInternal and
// unrecognized kinds.
func SentinelFor(kind ErrorKind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindFailure:
		return ErrInjectedFailure
	case KindUnknown:
		return ErrUnknownOperation
	case KindCanceled:
		return context.Canceled
	default:
		return nil
	}
}
