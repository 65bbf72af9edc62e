package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/metrics"
)

var ErrInvalidInput = errors.New("invalid room input")

// ProvisionError is a hard failure of a create or rename. Its message carries
// the backend's error text so callers can surface it.
type ProvisionError struct {
	Op  string
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to %s room: %v", e.Op, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Reader answers room listing and access queries with the caller's
// regular credentials.
type Reader interface {
	ListOwned(ctx context.Context, userID string) ([]Room, error)
	ListAccessible(ctx context.Context, userID, email string) ([]Room, error)
	HasAccess(ctx context.Context, roomID, userID, email string) (bool, error)
}

// Writer performs provisioning writes. It is backed by the service-role
// connection, which is not subject to per-user row checks.
type Writer interface {
	Create(ctx context.Context, rm *Room) error
	UpdateName(ctx context.Context, roomID, name string) error
}

type Service struct {
	reader Reader
	writer Writer
	cache  ListingCache
	log    zerolog.Logger
}

func NewService(reader Reader, writer Writer, cache ListingCache, log zerolog.Logger) *Service {
	if cache == nil {
		cache = noCache{}
	}
	return &Service{
		reader: reader,
		writer: writer,
		cache:  cache,
		log:    log.With().Str("component", "room").Logger(),
	}
}

type CreateRoomInput struct {
	Name         string
	Description  string
	MemberEmails []string
	OwnerID      string
	OwnerEmail   string
}

// ListOwnedRooms never fails: store errors are logged and an empty listing
// is returned so room pages stay usable.
func (s *Service) ListOwnedRooms(ctx context.Context, userID string) []Room {
	return s.cachedList(ctx, ownedKey(userID), func() ([]Room, error) {
		return s.reader.ListOwned(ctx, userID)
	})
}

// ListAccessibleRooms returns rooms shared with the user, excluding the ones
// they own. Fails open like ListOwnedRooms.
func (s *Service) ListAccessibleRooms(ctx context.Context, userID, email string) []Room {
	if strings.TrimSpace(email) == "" {
		return []Room{}
	}
	return s.cachedList(ctx, accessibleKey(userID, email), func() ([]Room, error) {
		return s.reader.ListAccessible(ctx, userID, email)
	})
}

func (s *Service) cachedList(ctx context.Context, key string, load func() ([]Room, error)) []Room {
	rooms, gen, err := s.cache.Get(ctx, key)
	cacheable := true
	switch {
	case err == nil:
		metrics.RoomListCache.WithLabelValues("hit").Inc()
		return rooms
	case errors.Is(err, ErrCacheMiss):
		metrics.RoomListCache.WithLabelValues("miss").Inc()
	default:
		// the generation is unknown, storing under a guess could outlive an invalidation
		cacheable = false
		metrics.RoomListCache.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("key", key).Msg("room listing cache read failed")
	}

	rooms, err = load()
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("error fetching rooms")
		return []Room{}
	}
	if rooms == nil {
		rooms = []Room{}
	}
	if !cacheable {
		return rooms
	}
	if err := s.cache.Set(ctx, gen, key, rooms); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("room listing cache write failed")
	}
	return rooms
}

// CreateRoom provisions a room owned by in.OwnerID. Member addresses that do
// not look like emails are dropped with a warning; the owner email is always
// the first admin.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*Room, error) {
	name := strings.TrimSpace(in.Name)
	ownerEmail := strings.TrimSpace(in.OwnerEmail)
	if name == "" || strings.TrimSpace(in.OwnerID) == "" || ownerEmail == "" {
		return nil, ErrInvalidInput
	}

	valid, dropped := FilterEmails(in.MemberEmails)
	if len(dropped) > 0 {
		s.log.Warn().Strs("dropped", dropped).Msg("some member emails were invalid and removed")
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, &ProvisionError{Op: "create", Err: err}
	}

	rm := &Room{
		ID:          id,
		Name:        name,
		Description: in.Description,
		UserID:      in.OwnerID,
		Admins:      []string{ownerEmail},
		Members:     valid,
	}

	s.log.Info().
		Str("owner", in.OwnerID).
		Str("owner_email", maskEmail(ownerEmail)).
		Int("members", len(valid)).
		Msg("creating room")

	if err := s.writer.Create(ctx, rm); err != nil {
		metrics.RoomsProvisioned.WithLabelValues("create", "error").Inc()
		s.log.Error().Err(err).Str("owner", in.OwnerID).Msg("error creating room")
		return nil, &ProvisionError{Op: "create", Err: err}
	}
	metrics.RoomsProvisioned.WithLabelValues("create", "ok").Inc()
	s.log.Info().Str("room_id", rm.ID).Msg("room created")

	s.invalidate(ctx)
	return rm, nil
}

// RenameRoom updates the room name in place.
func (s *Service) RenameRoom(ctx context.Context, roomID, newName string) error {
	newName = strings.TrimSpace(newName)
	if roomID == "" || newName == "" {
		return ErrInvalidInput
	}
	if err := s.writer.UpdateName(ctx, roomID, newName); err != nil {
		metrics.RoomsProvisioned.WithLabelValues("rename", "error").Inc()
		s.log.Error().Err(err).Str("room_id", roomID).Msg("error renaming room")
		return &ProvisionError{Op: "rename", Err: err}
	}
	metrics.RoomsProvisioned.WithLabelValues("rename", "ok").Inc()

	s.invalidate(ctx)
	return nil
}

// CanAccess gates room scoped operations. Unlike the listings it fails
// closed.
func (s *Service) CanAccess(ctx context.Context, roomID, userID, email string) (bool, error) {
	if roomID == "" || userID == "" {
		return false, nil
	}
	return s.reader.HasAccess(ctx, roomID, userID, email)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("room listing cache invalidation failed")
	}
}

// FilterEmails splits addresses into plausible ones (containing "@" and ".")
// and rejected ones. Duplicates are kept once.
func FilterEmails(emails []string) (valid, dropped []string) {
	valid = []string{}
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if !strings.Contains(e, "@") || !strings.Contains(e, ".") {
			dropped = append(dropped, e)
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		valid = append(valid, e)
	}
	return valid, dropped
}

func maskEmail(email string) string {
	if len(email) <= 3 {
		return "..."
	}
	return email[:3] + "..."
}
