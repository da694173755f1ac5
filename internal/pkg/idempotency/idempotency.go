// Package idempotency is a keyed request-deduplication service on Redis.
// A short-TTL exclusive lock guards in-flight work; a longer-TTL completion
// marker rejects resubmission of work that already ran.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix   = "idem:lock:"
	markerPrefix = "idem:done:"
)

// Key derives a deterministic dedupe key from the logical inputs of a request.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// Keeper holds the lock and completion-marker TTLs. The lock TTL bounds how
// long a crashed holder can block retries; the marker TTL bounds the window
// in which an identical request is treated as a duplicate.
type Keeper struct {
	rdb       *redis.Client
	lockTTL   time.Duration
	markerTTL time.Duration
}

func NewKeeper(rdb *redis.Client, lockTTL, markerTTL time.Duration) *Keeper {
	return &Keeper{rdb: rdb, lockTTL: lockTTL, markerTTL: markerTTL}
}

// AcquireLock takes the exclusive in-progress lock for the key. Returns false
// when another holder already has it.
func (k *Keeper) AcquireLock(ctx context.Context, key string) (bool, error) {
	return k.rdb.SetNX(ctx, lockPrefix+key, 1, k.lockTTL).Result()
}

// ReleaseLock frees the lock. Safe to call when the lock already expired.
func (k *Keeper) ReleaseLock(ctx context.Context, key string) error {
	return k.rdb.Del(ctx, lockPrefix+key).Err()
}

// MarkCompleted records that the keyed request ran to completion.
func (k *Keeper) MarkCompleted(ctx context.Context, key string) error {
	return k.rdb.Set(ctx, markerPrefix+key, time.Now().Unix(), k.markerTTL).Err()
}

// IsCompleted reports whether the keyed request completed within the marker TTL.
func (k *Keeper) IsCompleted(ctx context.Context, key string) (bool, error) {
	n, err := k.rdb.Exists(ctx, markerPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
