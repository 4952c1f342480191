package repository

import (
	"context"
	"errors"
)

// ErrLockNotHeld is returned by an Unlock whose lock expired or was taken over.
var ErrLockNotHeld = errors.New("lock not held")

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker serializes critical sections by key.
// Implementations: in-memory (single process) or Redis (shared by all instances).
type Locker interface {
	// Lock blocks until the key is acquired or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}
