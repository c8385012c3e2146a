package repo

// Guard ties one engine handle to the call that releases it. The engine
// hands out several independently closeable handle types (commit iterators,
// file iterators, reference iterators, filesystem watchers); wrapping the
// handle right at acquisition means an early return on a later error can
// never leak it.
//
// The zero value is empty: Get returns the zero handle and Release is a
// no-op. A Guard must not be copied; pass ownership with Detach instead.
type Guard[T any] struct {
	handle  T
	release func() error
}

// NewGuard wraps handle with its release function. A nil release marks a
// handle that needs no cleanup.
func NewGuard[T any](handle T, release func() error) Guard[T] {
	return Guard[T]{handle: handle, release: release}
}

// Get returns the guarded handle without transferring ownership.
func (g *Guard[T]) Get() T {
	return g.handle
}

// Release frees the handle. Releasing an empty or already released guard
// is a no-op, so it is safe to defer unconditionally.
func (g *Guard[T]) Release() error {
	if g.release == nil {
		return nil
	}
	release := g.release
	*g = Guard[T]{}
	return release()
}

// Detach hands the handle over to the caller and empties the guard. The
// caller becomes responsible for releasing it.
func (g *Guard[T]) Detach() T {
	handle := g.handle
	*g = Guard[T]{}
	return handle
}

// Held reports whether the guard still owns a handle.
func (g *Guard[T]) Held() bool {
	return g.release != nil
}
