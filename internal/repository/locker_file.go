package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

type fileLocker struct {
	dir           string
	retryInterval time.Duration
}

// NewFileLocker returns a Locker backed by OS file locks under dir, one
// <key>.lock file per key. It serializes every process on the host that
// shares dir, which is what a file-backed history needs.
func NewFileLocker(dir string, retryInterval time.Duration) Locker {
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	return &fileLocker{dir: dir, retryInterval: retryInterval}
}

// lockPath maps a key such as "guestpass:history:lock" to a portable file name.
func (l *fileLocker) lockPath(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, key)
	return filepath.Join(l.dir, name+".lock")
}

func (l *fileLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", l.dir, err)
	}
	fl := flock.New(l.lockPath(key))
	ok, err := fl.TryLockContext(ctx, l.retryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		result := ErrLockNotHeld
		once.Do(func() {
			result = nil
			if err := fl.Unlock(); err != nil {
				result = fmt.Errorf("release lock %s: %w", fl.Path(), err)
			}
		})
		return result
	}, nil
}
