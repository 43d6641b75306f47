package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "homeaccess:lease:"

// Only the holder's token may delete or extend the key.
const (
	leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
	leaseExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
)

var (
	ErrLockerNotConfigured = errors.New("lease client not configured")
	ErrLeaseLost           = errors.New("lease lost")
)

// Locker hands out named single-holder leases across replicas.
type Locker struct {
	client  *redis.Client
	release *redis.Script
	extend  *redis.Script
}

// Lease is a held lock. The zero value is not held.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
		extend:  redis.NewScript(leaseExtendScript),
	}
}

// Acquire returns a lease for name, or nil when another holder has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockerNotConfigured
	}
	if name == "" {
		return nil, errors.New("lease name is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}

	key := leaseKeyPrefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Extend pushes the expiry out by ttl while the lease is still ours.
func (lease *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	if lease == nil || lease.locker == nil {
		return ErrLeaseLost
	}
	n, err := lease.locker.extend.Run(ctx, lease.locker.client, []string{lease.key}, lease.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release drops the lease. Releasing an expired or foreign lease is a no-op.
func (lease *Lease) Release(ctx context.Context) error {
	if lease == nil || lease.locker == nil {
		return nil
	}
	return lease.locker.release.Run(ctx, lease.locker.client, []string{lease.key}, lease.token).Err()
}
