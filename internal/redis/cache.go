package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const namesKey = "catalog:municipality-names"

// NamesCache caches the municipality name list. The catalog is read-only
// after seeding, so a stale entry is at worst missing a freshly imported
// name until the TTL runs out.
type NamesCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewNamesCache(client *redis.Client, ttl time.Duration) *NamesCache {
	return &NamesCache{
		client: client,
		ttl:    ttl,
	}
}

// GetNames returns the cached list, or (nil, nil) on a cache miss.
func (c *NamesCache) GetNames(ctx context.Context) ([]string, error) {
	raw, err := c.client.Get(ctx, namesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached names: %w", err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode cached names: %w", err)
	}

	return names, nil
}

func (c *NamesCache) SetNames(ctx context.Context, names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode names: %w", err)
	}

	if err := c.client.Set(ctx, namesKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached names: %w", err)
	}

	return nil
}
