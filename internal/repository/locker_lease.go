package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// leaseStore holds expiring, token-owned leases. Every call is a single
// atomic compare on the server side.
type leaseStore interface {
	acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) (bool, error)
}

// leaseLocker renews a held lease every ttl/3. When a renewal finds the lease
// gone, Unlock reports ErrLockNotHeld.
type leaseLocker struct {
	store         leaseStore
	ttl           time.Duration
	retryInterval time.Duration
}

func newLeaseLocker(store leaseStore, ttl, retryInterval time.Duration) *leaseLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	return &leaseLocker{store: store, ttl: ttl, retryInterval: retryInterval}
}

func (l *leaseLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()
	for {
		ok, err := l.store.acquire(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	lost := make(chan struct{})
	done := make(chan struct{})
	go l.renew(renewCtx, key, token, lost, done)

	var (
		once   sync.Once
		result = ErrLockNotHeld
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			stop()
			<-done
			select {
			case <-lost:
				result = ErrLockNotHeld
				return
			default:
			}

			ok, err := l.store.release(ctx, key, token)
			switch {
			case err != nil:
				result = fmt.Errorf("release lock %s: %w", key, err)
			case !ok:
				result = ErrLockNotHeld
			default:
				result = nil
			}
		})
		return result
	}, nil
}

func (l *leaseLocker) renew(ctx context.Context, key, token string, lost, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ok, err := l.store.extend(ctx, key, token, l.ttl)
		if err != nil {
			// transient; the next tick retries until the lease itself lapses
			continue
		}
		if !ok {
			close(lost)
			return
		}
	}
}
