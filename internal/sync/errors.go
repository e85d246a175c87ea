package sync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ResolutionError reports that a remote id returned by the backend has no
// local row to map to. It surfaces the literal remote id so the user can see
// exactly which entity is missing from the cache.
type ResolutionError struct {
	Entity   string // "Project", "Section", ...
	RemoteID string
	Op       string // human-readable operation, e.g. "task update"
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s with remote_id %s not found locally during %s. Please sync projects first.",
		e.Entity, e.RemoteID, e.Op)
}

// NotFoundError reports that a local id addresses no cached row.
type NotFoundError struct {
	Entity string // "Task", "Project", ...
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in local storage: %s", e.Entity, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// wrapBackend prefixes a remote failure with the operation that triggered it.
// The underlying message stays opaque; it may contain anything the service
// chose to say.
func wrapBackend(op string, err error) error {
	return fmt.Errorf("backend request failed during %s: %w", op, err)
}
