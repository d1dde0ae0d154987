package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Open returns a store for url. An empty url or "none" disables
// checkpointing; redis:// and rediss:// use redis; any other scheme is
// opened as a gocloud bucket.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case url == "" || url == "none":
		return Noop(), nil
	case strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://"):
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return NewRedisStore(client, "", 0), nil
	default:
		return OpenBlobStore(ctx, url)
	}
}
