package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"neurax/internal/exchange"
	"neurax/internal/printer"
)

// connectRedisBus opens a knowledge bus and verifies connectivity.
func connectRedisBus(ctx context.Context, redisURL, instance string) (*exchange.RedisBus, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	bus, err := exchange.NewRedisBus(redisOpts, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge bus: %w", err)
	}

	if err := bus.Ping(ctx); err != nil {
		_ = bus.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Instance": instance},
			[]string{"Check that Redis is running and reachable, or drop --redis-url to use the in-memory exchange"},
		)
	}
	return bus, nil
}
