package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/collabnote/internal/realtime"
	"github.com/suPer8Hu/collabnote/internal/room"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestListingCache_GetSetInvalidate(t *testing.T) {
	s, mr := newTestStore(t)
	c := NewListingCache(s, time.Minute)
	ctx := context.Background()

	_, gen, err := c.Get(ctx, "owned:u1")
	assert.ErrorIs(t, err, room.ErrCacheMiss)
	assert.Zero(t, gen)

	rooms := []room.Room{{ID: "01ROOM", Name: "Notes", UserID: "u1", Admins: []string{"u1@x.com"}, Members: []string{}}}
	require.NoError(t, c.Set(ctx, gen, "owned:u1", rooms))

	got, _, err := c.Get(ctx, "owned:u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Notes", got[0].Name)
	assert.Equal(t, []string{"u1@x.com"}, got[0].Admins)

	require.NoError(t, c.Invalidate(ctx))
	_, gen, err = c.Get(ctx, "owned:u1")
	assert.ErrorIs(t, err, room.ErrCacheMiss)
	assert.Equal(t, int64(1), gen)

	// stale generations still expire on their own
	assert.True(t, mr.Exists(keyPrefix+"rooms:list:0:owned:u1"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(keyPrefix+"rooms:list:0:owned:u1"))
}

func TestListingCache_EmptyListingIsAHit(t *testing.T) {
	s, _ := newTestStore(t)
	c := NewListingCache(s, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 0, "owned:u1", []room.Room{}))
	got, _, err := c.Get(ctx, "owned:u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListingCache_SetIntoInvalidatedGenerationStaysInvisible(t *testing.T) {
	s, _ := newTestStore(t)
	c := NewListingCache(s, time.Minute)
	ctx := context.Background()

	_, gen, err := c.Get(ctx, "owned:u1")
	require.ErrorIs(t, err, room.ErrCacheMiss)
	require.NoError(t, c.Invalidate(ctx))

	require.NoError(t, c.Set(ctx, gen, "owned:u1", []room.Room{{ID: "old"}}))
	_, _, err = c.Get(ctx, "owned:u1")
	assert.ErrorIs(t, err, room.ErrCacheMiss)
}

// racingReader commits a new room and invalidates the cache while a listing
// read is in flight, returning the snapshot taken before the commit.
type racingReader struct {
	cache *ListingCache
	rooms []room.Room
	race  bool
}

func (r *racingReader) ListOwned(ctx context.Context, _ string) ([]room.Room, error) {
	snapshot := append([]room.Room(nil), r.rooms...)
	if r.race {
		r.race = false
		r.rooms = append(r.rooms, room.Room{ID: "02NEW", Name: "New"})
		if err := r.cache.Invalidate(ctx); err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

func (r *racingReader) ListAccessible(context.Context, string, string) ([]room.Room, error) {
	return nil, nil
}

func (r *racingReader) HasAccess(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type nopWriter struct{}

func (nopWriter) Create(context.Context, *room.Room) error          { return nil }
func (nopWriter) UpdateName(context.Context, string, string) error { return nil }

func TestListingCache_CreateDuringListingIsNotMasked(t *testing.T) {
	s, _ := newTestStore(t)
	c := NewListingCache(s, time.Minute)
	ctx := context.Background()

	reader := &racingReader{cache: c, rooms: []room.Room{{ID: "01OLD", Name: "Old"}}, race: true}
	svc := room.NewService(reader, nopWriter{}, c, zerolog.Nop())

	first := svc.ListOwnedRooms(ctx, "u1")
	assert.Len(t, first, 1)

	second := svc.ListOwnedRooms(ctx, "u1")
	require.Len(t, second, 2)
	assert.Equal(t, "02NEW", second[1].ID)

	// the fresh listing is cached now
	third := svc.ListOwnedRooms(ctx, "u1")
	assert.Len(t, third, 2)
}

func TestRealtime_RequestStorage(t *testing.T) {
	s, _ := newTestStore(t)
	rt := NewRealtime(s, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, rt.Ping(ctx))

	_, err := rt.GetRequest(ctx, "room-1", "req-1")
	assert.ErrorIs(t, err, realtime.ErrNotFound)

	req := realtime.AIRequest{ID: "req-1", Type: "generate", Prompt: "poem", Status: realtime.StatusPending, Timestamp: time.Unix(100, 0).UTC()}
	req.Complete("roses", time.Unix(200, 0).UTC())
	require.NoError(t, rt.PutRequest(ctx, "room-1", req))

	got, err := rt.GetRequest(ctx, "room-1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "roses", *got.Result)
	assert.True(t, got.Timestamp.Equal(req.Timestamp))

	_, err = rt.GetRequest(ctx, "room-2", "req-1")
	assert.ErrorIs(t, err, realtime.ErrNotFound)
}

func TestRealtime_PublishSubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	rt := NewRealtime(s, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := rt.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	other, err := rt.Subscribe(ctx, "room-2")
	require.NoError(t, err)

	require.NoError(t, rt.Publish(ctx, "room-1", realtime.CompletedEvent("summarize", "req-1", "short", time.Now())))

	select {
	case ev := <-events:
		assert.Equal(t, "AI_SUMMARIZE_COMPLETED", ev.Type)
		assert.Equal(t, "short", ev.Data.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event in other room: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRealtime_WorksWithBotSessions(t *testing.T) {
	s, _ := newTestStore(t)
	rt := NewRealtime(s, zerolog.Nop())
	authority, err := realtime.NewAuthority("secret", time.Minute, "minimal")
	require.NoError(t, err)

	_, token, err := authority.Prepare("room-1")
	require.NoError(t, err)
	sess, err := authority.Open(context.Background(), rt, token)
	require.NoError(t, err)

	require.NoError(t, sess.PutRequest(context.Background(), realtime.AIRequest{ID: "r", Type: "chat", Status: realtime.StatusPending}))
	got, err := rt.GetRequest(context.Background(), "room-1", "r")
	require.NoError(t, err)
	assert.Equal(t, "chat", got.Type)
}
