// Package errs holds the error taxonomy shared by the store, the agents and the orchestrator.
// Errors are wrapped with fmt.Errorf("...: %w") and matched with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing or invalid system or agent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrIntegrationUnavailable marks an absent messaging, code-host or completion collaborator.
	ErrIntegrationUnavailable = errors.New("integration unavailable")
	// ErrPersistence marks a failed state store call.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound marks an unknown agent name or task id.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a create of a record whose key already exists.
	ErrConflict = errors.New("already exists")

	ErrInvalidRequestType = errors.New("invalid request type")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTaskClosed         = errors.New("task already completed")
)

// Persistence tags a store error as a persistence failure. Lookup and
// validation errors pass through unchanged so callers can still tell them apart.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	for _, keep := range []error{ErrNotFound, ErrConflict, ErrTaskClosed, ErrInvalidInput, ErrPersistence} {
		if errors.Is(err, keep) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
