package session

import (
	"context"
	"errors"
	"time"
)

// Store errors. Callers branch on these with errors.Is.
var (
	// ErrNotFound means no state exists for the session id.
	ErrNotFound = errors.New("session not found")
	// ErrConflict means a CompareAndSet lost against a concurrent writer.
	ErrConflict = errors.New("session version conflict")
)

// Store is the persistence boundary for session state. Implementations must
// make CompareAndSet linearizable per session id: two writers racing on the
// same session see exactly one winner, so a read-modify-write loop over
// Get + CompareAndSet serializes turns for a session while leaving unrelated
// sessions fully parallel.
type Store interface {
	// Get returns a copy of the state for the session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*State, error)

	// Put writes state unconditionally, creating the session if needed.
	Put(ctx context.Context, st *State) error

	// CompareAndSet writes state only if the stored version still matches
	// st.Version, then bumps the version. Returns ErrConflict on a lost
	// race. A Version of zero inserts and fails if the session exists.
	CompareAndSet(ctx context.Context, st *State) error

	// Expire removes sessions whose last activity is older than ttl and
	// returns how many were dropped. Expiry is a storage concern only; it
	// ignores conclusion status.
	Expire(ctx context.Context, ttl time.Duration) (int, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close()
}
