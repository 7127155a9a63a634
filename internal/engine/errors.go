package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned by any mutation when no user identity
	// is configured. Fatal to the operation, never retried automatically.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound indicates a referenced habit, task or completion does not
	// exist, as opposed to a transient store failure.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates input rejected before any store write.
	ErrInvalidInput = errors.New("invalid input")
)

// BulkError reports a partial bulk failure. Identifiers not listed in Failed
// are guaranteed applied.
type BulkError struct {
	Failed map[int64]error
}

func (e *BulkError) Error() string {
	ids := make([]int64, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("bulk operation failed for %d item(s): %s", len(ids), strings.Join(parts, "; "))
}

// FailedIDs returns the failed identifiers in ascending order.
func (e *BulkError) FailedIDs() []int64 {
	ids := make([]int64, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TransitionError is returned for a status change the task state machine
// does not permit.
type TransitionError struct {
	From string
	To   string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot transition task from %q to %q", e.From, e.To)
}

func (e TransitionError) Unwrap() error { return ErrInvalidInput }
