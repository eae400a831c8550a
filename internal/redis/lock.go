package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only if it still holds the caller's token,
// so an expired holder cannot release a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockHeld is returned when another caller holds the lock.
var ErrLockHeld = errors.New("lock held by another caller")

// Lock is a held lock. Release it with LockStore.Release.
type Lock struct {
	key   string
	token string
}

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireDriverLock reserves a driver while a ride is being assigned to them.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error) {
	return s.acquire(ctx, "lock:driver:"+driverID, ttl)
}

// AcquireRideLock serialises lifecycle transitions on one ride.
func (s *LockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (*Lock, error) {
	return s.acquire(ctx, "lock:ride:"+rideID, ttl)
}

// Release frees a lock acquired from this store. Releasing a nil or expired
// lock is a no-op.
func (s *LockStore) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return releaseScript.Run(ctx, s.client, []string{lock.key}, lock.token).Err()
}

func (s *LockStore) acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{key: key, token: token}, nil
}
