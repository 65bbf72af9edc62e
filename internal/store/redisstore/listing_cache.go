package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/collabnote/internal/room"
)

const listingGenKey = keyPrefix + "rooms:gen"

// ListingCache stores room listings under a generation number. Invalidate
// bumps the generation, so every listing cached before it is never read
// again and expires on its own TTL.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListingCache(s *Store, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ListingCache{client: s.client, ttl: ttl}
}

func (c *ListingCache) generation(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, listingGenKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *ListingCache) key(gen int64, key string) string {
	return keyPrefix + "rooms:list:" + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *ListingCache) Get(ctx context.Context, key string) ([]room.Room, int64, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, err
	}
	raw, err := c.client.Get(ctx, c.key(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, room.ErrCacheMiss
	}
	if err != nil {
		return nil, 0, err
	}
	var rooms []room.Room
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, 0, err
	}
	return rooms, gen, nil
}

// Set stores under gen, the generation a prior Get returned. Writing into a
// generation that has since been invalidated is harmless: nobody reads it.
func (c *ListingCache) Set(ctx context.Context, gen int64, key string, rooms []room.Room) error {
	raw, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(gen, key), raw, c.ttl).Err()
}

func (c *ListingCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, listingGenKey).Err()
}
