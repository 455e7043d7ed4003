package capfs

import "errors"

// Error kinds returned by this layer. Host failures (not-found, permission)
// pass through wrapped and are classified with errors.Is against the
// underlying error instead.
var (
	// ErrNotCapable is returned when a descriptor's rights set does not
	// permit the requested operation category.
	ErrNotCapable = errors.New("descriptor rights do not permit operation")

	// ErrRightsEscalation is returned when a narrowing request is not a
	// subset of the descriptor's current rights.
	ErrRightsEscalation = errors.New("rights narrowing would widen rights")

	// ErrTraversalBeyondRoot is returned by strict-relative resolution for
	// absolute paths, paths containing "..", and symlinks whose target text
	// is absolute or contains "..".
	ErrTraversalBeyondRoot = errors.New("path traversal beyond containment root")

	// ErrSymlinkLoop is returned when symlink expansion exceeds its bound,
	// or when a no-follow lookup lands on a symlink.
	ErrSymlinkLoop = errors.New("symlink expansion refused")

	// ErrSandboxViolation is returned for ambient-reference lookups once
	// sandbox mode has been entered.
	ErrSandboxViolation = errors.New("ambient lookup rejected in sandbox mode")

	// ErrClosed is returned for any operation on a closed descriptor.
	ErrClosed = errors.New("descriptor is closed")
)
