package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goobi/goobi-production/pkg/lock"
	redislock "github.com/goobi/goobi-production/pkg/lock/redis"
	"github.com/redis/go-redis/v9"
)

// NewLocker returns a Redis backed locker when redisURL is set and an in-process one otherwise.
// The returned close function releases the Redis client.
//
// nolint:ireturn // the backend is selected at runtime
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) (lock.Locker, func() error, error) {
	if redisURL == "" {
		return lock.NewLocal(), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Using Redis locks", "addr", opts.Addr)

	return redislock.NewLocker(client, "goobi:"), client.Close, nil
}
