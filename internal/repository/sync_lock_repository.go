package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const syncLockPrefix = "sync:lock:"

// releaseLock deletes the key only while the caller still owns it.
var releaseLock = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`)

// SyncLockRepository serialises sync work per request across processes
// using Redis. Without a configured client it degrades to a no-op and the
// in-process lock inside the sync service remains the only guard.
type SyncLockRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSyncLockRepository constructs the lock repository.
func NewSyncLockRepository(client *redis.Client, logger *zap.Logger) *SyncLockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncLockRepository{client: client, logger: logger}
}

// Acquire takes the per-request lock for at most ttl. ok=false means
// another worker holds it and the caller should back off.
func (r *SyncLockRepository) Acquire(ctx context.Context, requestID string, ttl time.Duration) (string, bool, error) {
	if r.client == nil {
		return "", true, nil
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, syncLockPrefix+requestID, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire sync lock %s: %w", requestID, err)
	}
	return token, ok, nil
}

// Release frees the lock while still owned by token. An expired lock is
// left alone so a new owner is never evicted.
func (r *SyncLockRepository) Release(ctx context.Context, requestID, token string) error {
	if r.client == nil || token == "" {
		return nil
	}

	if err := releaseLock.Run(ctx, r.client, []string{syncLockPrefix + requestID}, token).Err(); err != nil {
		return fmt.Errorf("release sync lock %s: %w", requestID, err)
	}
	return nil
}
