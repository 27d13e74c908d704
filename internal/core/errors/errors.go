// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrRequestNotFound indicates a report request record does not exist.
	ErrRequestNotFound = errors.New("report request not found")

	// ErrReportNotFound indicates a persisted report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrConfigNotFound indicates an admin report config does not exist.
	ErrConfigNotFound = errors.New("admin report config not found")

	// ErrJobNotFound indicates a generation job does not exist.
	ErrJobNotFound = errors.New("generation job not found")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingTarget indicates a request did not name a subreddit or owner/repo.
	ErrMissingTarget = errors.New("missing target")

	// ErrUnsupportedPlatform indicates no fetcher is registered for the platform type.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Generation errors.
var (
	// ErrEmptyResult indicates generation found nothing to analyze. Callers
	// treat it as a soft failure, not an exception.
	ErrEmptyResult = errors.New("no analyzable items in window")

	// ErrGenerationFailed indicates whole-request generation failed.
	ErrGenerationFailed = errors.New("report generation failed")
)

// Concurrency errors.
var (
	// ErrVersionConflict indicates an optimistic concurrency compare failed
	// and the caller must retry with a fresh read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Cache errors.
var (
	// ErrCacheNotFound indicates a cache entry was not found.
	ErrCacheNotFound = errors.New("cache entry not found")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
