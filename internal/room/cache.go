package room

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by ListingCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("room listing cache miss")

// ListingCache caches per-user room listings. Invalidate must make every
// previously cached listing stale, since a create or rename can change the
// listing of any number of users.
//
// Get reports the cache generation it looked in, on a hit and on a miss.
// Set stores under that generation, so a listing loaded before an
// Invalidate never becomes visible after it.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]Room, int64, error)
	Set(ctx context.Context, gen int64, key string, rooms []Room) error
	Invalidate(ctx context.Context) error
}

func ownedKey(userID string) string { return "owned:" + userID }

func accessibleKey(userID, email string) string { return "accessible:" + userID + ":" + email }

type noCache struct{}

func (noCache) Get(context.Context, string) ([]Room, int64, error) { return nil, 0, ErrCacheMiss }
func (noCache) Set(context.Context, int64, string, []Room) error   { return nil }
func (noCache) Invalidate(context.Context) error                   { return nil }
