// Package store is the key-value tree the order and cart records live in.
//
// Values are opaque byte slices addressed by slash separated paths such as
// "orders/o007". Besides point reads and whole-value writes a store offers an
// atomic counter, a read-modify-write transaction that is retried on
// conflicting writers, prefix listing, and change subscriptions that are
// delivered at least once.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no value exists at a path.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an update kept losing to concurrent writers.
	ErrConflict = errors.New("store: too many conflicting updates")

	// ErrUnavailable marks transient backend failures that may be retried.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// UpdateFunc receives the current value at a path, or nil when the path is
// absent, and returns the value to store. Returning a nil value leaves the
// path unchanged; returning an error aborts the update and is passed through
// to the caller unchanged. The function may run more than once.
type UpdateFunc func(current []byte) ([]byte, error)

// Entry is a stored value together with its path.
type Entry struct {
	Path    string
	Value   []byte
	Version int64
}

// Event notifies a subscriber that the value at Path changed.
type Event struct {
	Path  string
	Value []byte
}

// Store is the data store collaborator used by the repositories.
type Store interface {
	// Get returns the value at path or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put replaces the value at path.
	Put(ctx context.Context, path string, value []byte) error

	// Update atomically applies fn to the value at path and returns the
	// value that is stored afterwards.
	Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error)

	// Increment atomically adds one to the named counter and returns the new value.
	Increment(ctx context.Context, counter string) (int64, error)

	// List returns every entry whose path starts with prefix, ordered by path.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Subscribe streams changes below prefix until ctx is cancelled, at which
	// point the channel is closed.
	Subscribe(ctx context.Context, prefix string) (<-chan Event, error)
}

// Join builds a path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
