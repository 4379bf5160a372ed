// Package pipeerr defines the closed set of error kinds the pipeline engine
// and its steps report. Every error that crosses a step or carrier boundary
// is (or wraps) an *Error, so callers can branch on Kind instead of string
// matching.
package pipeerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. The set is closed: callers are
// expected to switch over it exhaustively rather than compare error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArguments
	KindUnknownStep
	KindPipelineShape
	KindNotFound
	KindNetwork
	KindFormat
	KindCryptoAuth
	KindUnsupportedOperation
	KindResourceLimit
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArguments:
		return "invalid_arguments"
	case KindUnknownStep:
		return "unknown_step"
	case KindPipelineShape:
		return "pipeline_shape"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network_error"
	case KindFormat:
		return "format_error"
	case KindCryptoAuth:
		return "crypto_auth_error"
	case KindUnsupportedOperation:
		return "unsupported_operation"
	case KindResourceLimit:
		return "resource_limit"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single exported error type the engine produces. Op names the
// failing call site (e.g. "executor.Run", "zipstep.Preview"), Kind classifies
// the failure, and Err holds the wrapped cause when one exists.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so errors.Is(err,
// pipeerr.New(pipeerr.KindNotFound, "", nil)) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error directly. Prefer the Kind-specific helpers below at
// call sites; New exists for the rare case none fits.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Invalid(op string, err error) *Error { return New(KindInvalidArguments, op, err) }

func Invalidf(op, format string, a ...interface{}) *Error {
	return Invalid(op, fmt.Errorf(format, a...))
}

func UnknownStep(op, name string) *Error {
	return New(KindUnknownStep, op, fmt.Errorf("unknown step type %q", name))
}

func Shape(op string, err error) *Error { return New(KindPipelineShape, op, err) }

func Shapef(op, format string, a ...interface{}) *Error {
	return Shape(op, fmt.Errorf(format, a...))
}

func NotFound(op string, err error) *Error { return New(KindNotFound, op, err) }

func Network(op string, err error) *Error { return New(KindNetwork, op, err) }

func Networkf(op, format string, a ...interface{}) *Error {
	return Network(op, fmt.Errorf(format, a...))
}

func Format(op string, err error) *Error { return New(KindFormat, op, err) }

func Formatf(op, format string, a ...interface{}) *Error {
	return Format(op, fmt.Errorf(format, a...))
}

func CryptoAuth(op string, err error) *Error { return New(KindCryptoAuth, op, err) }

// Unsupported reports that an operation makes no sense for the receiver
// (e.g. seeking a Queue carrier). It carries no wrapped cause.
func Unsupported(op string) *Error {
	return New(KindUnsupportedOperation, op, nil)
}

func ResourceLimit(op string, err error) *Error { return New(KindResourceLimit, op, err) }

func ResourceLimitf(op, format string, a ...interface{}) *Error {
	return ResourceLimit(op, fmt.Errorf(format, a...))
}

func Cancelled(op string, err error) *Error { return New(KindCancelled, op, err) }

// KindOf extracts the Kind of err, unwrapping through wrapped errors and
// mapping context cancellation to KindCancelled. Returns KindUnknown for
// anything else, including nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}
