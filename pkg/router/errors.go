package router

import (
	"errors"
	"fmt"

	"github.com/zen-systems/switchboard/pkg/adapter"
)

var (
	// ErrNoEligibleBackend means no backend could be put in the candidate order.
	ErrNoEligibleBackend = errors.New("no eligible backend")
	// ErrUnknownBackend means a named backend is not in the catalog.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrUnknownDecision means feedback referenced a decision that is not logged.
	ErrUnknownDecision = errors.New("unknown decision")
	// ErrCascadeExhausted matches every *CascadeExhaustedError.
	ErrCascadeExhausted = errors.New("cascade exhausted")
)

// InvocationError wraps one failed backend attempt.
type InvocationError struct {
	Backend string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// CascadeExhaustedError is returned when every candidate failed. Only the
// last failure is carried; earlier ones are in the logs and health records.
type CascadeExhaustedError struct {
	Last     *InvocationError
	Attempts int
	Reports  []adapter.CallReport
}

func (e *CascadeExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("cascade exhausted after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("cascade exhausted after %d attempts; last backend %s: %v", e.Attempts, e.Last.Backend, e.Last.Err)
}

// Is lets errors.Is(err, ErrCascadeExhausted) match.
func (e *CascadeExhaustedError) Is(target error) bool {
	return target == ErrCascadeExhausted
}

func (e *CascadeExhaustedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}
