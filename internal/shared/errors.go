// Package shared contains common error types and utilities.
package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinels wrapped by component errors.
var (
	// ErrNotFound: unknown job id.
	ErrNotFound = errors.New("not found")
	// ErrValidation: malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrTimeout: an operation ran out of time.
	ErrTimeout = errors.New("operation timed out")
	// ErrDependencyFailure: an outbound call failed at the transport level.
	ErrDependencyFailure = errors.New("dependency failure")
	// ErrUnavailable: a component is stopped or not configured.
	ErrUnavailable = errors.New("unavailable")
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindTimeout
	KindDependencyFailure
	KindUnavailable
	KindCanceled
)

var kindNames = [...]string{
	KindUnknown:           "Unknown",
	KindNotFound:          "NotFound",
	KindValidation:        "Validation",
	KindTimeout:           "Timeout",
	KindDependencyFailure: "DependencyFailure",
	KindUnavailable:       "Unavailable",
	KindCanceled:          "Canceled",
}

// String returns the name of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// sentinel returns the error marking kind k, nil for Unknown and Canceled.
func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindTimeout:
		return ErrTimeout
	case KindDependencyFailure:
		return ErrDependencyFailure
	case KindUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// KindOf classifies err. When several kinds are present (errors.Join, double
// marking) the first in this order wins: Canceled, Timeout, NotFound,
// Validation, Unavailable, DependencyFailure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case IsCanceled(err):
		return KindCanceled
	case IsTimeout(err):
		return KindTimeout
	case IsNotFound(err):
		return KindNotFound
	case IsValidation(err):
		return KindValidation
	case IsUnavailable(err):
		return KindUnavailable
	case IsDependencyFailure(err):
		return KindDependencyFailure
	default:
		return KindUnknown
	}
}

// MarkKind wraps err with the sentinel of kind, keeping err in the chain.
// A nil err yields the bare sentinel; an err that already classifies as kind
// is returned unchanged.
//
//	resp, err := client.Do(ctx, req)
//	if err != nil {
//	    return shared.MarkKind(err, shared.KindDependencyFailure)
//	}
func MarkKind(err error, kind Kind) error {
	s := kind.sentinel()
	if err == nil {
		return s
	}
	if s == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", s, err)
}

// Wrap prefixes err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsCanceled reports a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout covers context.DeadlineExceeded, net.Error timeouts and ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsDependencyFailure(err error) bool { return errors.Is(err, ErrDependencyFailure) }
func IsUnavailable(err error) bool       { return errors.Is(err, ErrUnavailable) }

// IsTransient reports whether retrying may succeed: timeouts and outbound
// transport failures. Canceled contexts are never transient.
func IsTransient(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	return IsTimeout(err) || IsDependencyFailure(err)
}

// StatusClientClosed is reported when the caller went away mid-request.
const StatusClientClosed = 499

// HTTPStatus maps err to the status code the API reports for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDependencyFailure:
		return http.StatusBadGateway
	case KindCanceled:
		return StatusClientClosed
	default:
		return http.StatusInternalServerError
	}
}
