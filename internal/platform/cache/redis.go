package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis runs on the node itself, so connection attempts either succeed
// quickly or the instance is down. Short timeouts keep boot failures fast.
const (
	dialTimeout = 2 * time.Second
	pingTimeout = 3 * time.Second
)

// New connects to the node-local Redis instance that backs sessions, carts
// and the job queue, and verifies it responds before returning.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
