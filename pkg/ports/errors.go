package ports

import "errors"

// Sentinel errors returned by capability port implementations. Callers use
// errors.Is against these rather than type-asserting concrete adapter
// errors, keeping component packages decoupled from any one backend.
var (
	// ErrNotFound indicates the requested entity does not exist in the backend.
	ErrNotFound = errors.New("ports: not found")

	// ErrUnavailable indicates the backend is not configured or not reachable
	// for an optional capability (e.g. no embedder configured). Callers that
	// treat a dependency as optional (spec §4.8.1's semantic branch) check
	// for this and degrade silently rather than failing the operation.
	ErrUnavailable = errors.New("ports: capability unavailable")

	// ErrConflict indicates an optimistic-concurrency or uniqueness violation.
	ErrConflict = errors.New("ports: conflict")
)
