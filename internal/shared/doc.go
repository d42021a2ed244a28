// Package shared contains common error types and utilities for error handling
// across the application without domain-specific logic.
//
// # Error Classification
//
// Components return errors that wrap one of the sentinels below so that the
// transport layer can classify them without knowing the concrete type:
//
//   - ErrValidation: malformed registration input, unparsable curl command
//   - ErrNotFound: cancel or lookup of an unknown job id
//   - ErrDependencyFailure: transport failure of an outbound request
//   - ErrTimeout: outbound request or operation timed out
//   - ErrUnavailable: scheduler stopped, archive not configured
//
// Use KindOf to classify and HTTPStatus to map to a response code:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    // report a not-found condition
//	case shared.KindValidation:
//	    // surface the message verbatim
//	}
//
// # Kind Priority
//
// When multiple kinds are present (errors.Join), KindOf returns the first match in
// this order: Canceled, Timeout, NotFound, Validation, Unavailable,
// DependencyFailure.
//
// # Error Message Style
//
// Keep messages lowercase and without trailing punctuation so they compose
// when wrapped with Wrap or Wrapf.
package shared
