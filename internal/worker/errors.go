package worker

import "fmt"

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ rank int }

func (e tooBusyError) Error() string { return fmt.Sprintf("too busy: worker %d", e.rank) }

// ErrTooBusy constructs a tooBusyError for a worker rank.
func ErrTooBusy(rank int) error { return tooBusyError{rank: rank} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// validationError rejects malformed sampling parameters for 400 mapping.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError.
func ErrValidation(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err indicates a bad request parameter.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// notReadyError signals that the worker pool has not passed its startup
// barrier (or failed to), so the HTTP layer can return 503.
type notReadyError struct{}

func (notReadyError) Error() string { return "workers not ready" }

// ErrNotReady constructs a notReadyError.
func ErrNotReady() error { return notReadyError{} }

// IsNotReady reports whether err indicates the pool is still loading.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// generationFailedError is the failure sentinel surfaced to the front end.
// It deliberately carries no detail beyond the request id; the cause is
// logged inside the worker only.
type generationFailedError struct{ id string }

func (e generationFailedError) Error() string { return "generation failed" }

// ErrGenerationFailed constructs the sentinel for a request id.
func ErrGenerationFailed(id string) error { return generationFailedError{id: id} }

// IsGenerationFailed reports whether err is the per-request failure sentinel.
func IsGenerationFailed(err error) bool {
	_, ok := err.(generationFailedError)
	return ok
}
