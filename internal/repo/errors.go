package repo

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by this package. Callers match them with errors.Is;
// the underlying engine error stays on the chain for diagnostics.
var (
	// ErrNotARepository is returned by Open when no repository exists at
	// the given path.
	ErrNotARepository = errors.New("not a git repository")

	// ErrAlreadyExists is returned by Init on a path that already contains
	// a repository, and by Clone on a non-empty target directory.
	ErrAlreadyExists = errors.New("repository already exists")

	// ErrPathNotFound is returned for operations on paths unknown to both
	// the working tree and the index.
	ErrPathNotFound = errors.New("path not found")

	// ErrNothingToCommit is returned by Commit when the index matches HEAD.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrDivergentHistory is returned when a push or pull cannot proceed
	// without rewriting or merging history.
	ErrDivergentHistory = errors.New("local and remote histories have diverged")

	// ErrTransport covers network and authentication failures during
	// push, pull, fetch and clone.
	ErrTransport = errors.New("transport failure")

	// ErrEngine wraps opaque failures reported by the underlying engine.
	ErrEngine = errors.New("git engine failure")
)

func wrapKind(kind error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}
