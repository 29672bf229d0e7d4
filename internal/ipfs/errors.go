package ipfs

import "errors"

// Failure classes for daemon calls. Callers pick behavior with errors.Is;
// everything else that comes out of the facade is a plumbing error.
var (
	// ErrDaemonUnavailable means the ipfs binary is missing or the daemon
	// is not reachable. Fatal for the whole operation.
	ErrDaemonUnavailable = errors.New("ipfs daemon unavailable")

	// ErrTimeout means a single call exceeded its deadline. Non-fatal,
	// recorded per unit of work.
	ErrTimeout = errors.New("ipfs call timed out")

	// ErrNotFound means the daemon answered but the path or name does not
	// resolve to anything.
	ErrNotFound = errors.New("not found")

	// ErrMalformed means the daemon returned content we could not parse.
	ErrMalformed = errors.New("malformed content")
)
