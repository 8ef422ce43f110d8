package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// DefaultLockPrefix namespaces lock keys
const DefaultLockPrefix = "docdesk:lock:"

// LockConfig configures a Lock
type LockConfig struct {
	// KeyPrefix is prepended to every lock name (default DefaultLockPrefix)
	KeyPrefix string

	// OwnerID identifies this holder; generated when empty
	OwnerID string
}

// Lock implements DistributedLock using Redis SET NX with a TTL.
// The stored value is the owner ID, so only the holder can release or extend.
type Lock struct {
	client  *redis.Client
	prefix  string
	ownerID string
}

// NewLock creates a Redis-backed distributed lock.
func NewLock(client *redis.Client, cfg LockConfig) *Lock {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultLockPrefix
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = generateOwnerID()
	}
	return &Lock{client: client, prefix: cfg.KeyPrefix, ownerID: cfg.OwnerID}
}

// generateOwnerID returns hostname:pid:random
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Acquire takes the lock if nobody holds it. Holding it already counts as
// not acquired so a second pipeline run in this process is skipped too.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// compareAndDelete deletes KEYS[1] only while it holds ARGV[1]
var compareAndDelete = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Release deletes the lock if this instance owns it.
// Safe to call when the lock expired or belongs to someone else.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := compareAndDelete.Run(ctx, l.client, []string{l.prefix + name}, l.ownerID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// compareAndExpire refreshes the TTL of KEYS[1] only while it holds ARGV[1]
var compareAndExpire = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// Extend refreshes the TTL of a lock this instance holds.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := compareAndExpire.Run(ctx, l.client, []string{l.prefix + name}, l.ownerID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the identifier written into held locks
func (l *Lock) OwnerID() string {
	return l.ownerID
}
