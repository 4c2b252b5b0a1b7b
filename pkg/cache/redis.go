package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/escolab/agenda-api/pkg/config"
)

// Redis backs the sync locks and the reference cache, both of which the
// service can live without. Timeouts are kept tight so a down Redis is
// detected at startup instead of stalling the first request.
const (
	dialTimeout = 2 * time.Second
	readTimeout = 500 * time.Millisecond
	pingTimeout = 2 * time.Second
)

// NewRedis returns a connected Redis client or an error the caller may
// choose to tolerate.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
		ReadTimeout: readTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
