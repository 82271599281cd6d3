package registry

import "fmt"

// notFoundError indicates that a checkpoint directory, its model_args.json
// or one of its weight shards does not exist.
type notFoundError struct{ msg string }

func (e notFoundError) Error() string { return e.msg }

// ErrCheckpointNotFound returns an error for a missing checkpoint artifact.
func ErrCheckpointNotFound(format string, args ...any) error {
	return notFoundError{msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether the error indicates a missing checkpoint
// artifact (the HTTP layer maps it to 404).
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
