package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the lock still holds our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

type redisLease struct {
	client *redis.Client
}

func (r redisLease) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, token, ttl).Result()
}

func (r redisLease) extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{key}, token, ttl.Milliseconds()).Int64()
	return n == 1, err
}

func (r redisLease) release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
	return n == 1, err
}

// NewRedisLocker returns a Locker backed by SET NX PX. The lease is renewed
// while held; ttl bounds how long a crashed holder can block others and
// retryInterval is the polling period.
func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration) Locker {
	return newLeaseLocker(redisLease{client: client}, ttl, retryInterval)
}
