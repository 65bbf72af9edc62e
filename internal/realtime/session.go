package realtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/collabnote/internal/common"
)

type Permission string

const (
	PermStorageWrite  Permission = "room:storage:write"
	PermEventsPublish Permission = "room:events:publish"
	PermPresenceWrite Permission = "room:presence:write"
)

const (
	BotName  = "AI Bot"
	BotEmail = "ai-bot@collabnote.com"
)

// PolicyPermissions resolves an access policy name. "full" grants everything
// a room participant can do; "minimal" grants only what a dispatch needs.
func PolicyPermissions(policy string) ([]Permission, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "full":
		return []Permission{PermStorageWrite, PermEventsPublish, PermPresenceWrite}, nil
	case "minimal":
		return []Permission{PermStorageWrite, PermEventsPublish}, nil
	default:
		return nil, fmt.Errorf("unknown AI bot access policy %q", policy)
	}
}

// Grant is a verified, room scoped elevated session.
type Grant struct {
	Actor       string
	RoomID      string
	Permissions []Permission
	ExpiresAt   time.Time
}

func (g *Grant) Allows(p Permission) bool {
	return slices.Contains(g.Permissions, p)
}

type botClaims struct {
	Room  string       `json:"room"`
	Perms []Permission `json:"perms"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	jwt.RegisteredClaims
}

// Authority mints and verifies short-lived bot sessions signed with the
// realtime secret key.
type Authority struct {
	secret []byte
	ttl    time.Duration
	perms  []Permission
	now    func() time.Time
}

func NewAuthority(secret string, ttl time.Duration, policy string) (*Authority, error) {
	if secret == "" {
		return nil, errors.New("realtime: secret key is required")
	}
	perms, err := PolicyPermissions(policy)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Authority{secret: []byte(secret), ttl: ttl, perms: perms, now: time.Now}, nil
}

// Prepare creates a new synthetic bot identity allowed into roomID only.
// Identities are never reused across calls.
func (a *Authority) Prepare(roomID string) (*Grant, string, error) {
	if roomID == "" {
		return nil, "", fmt.Errorf("%w: empty room", ErrInvalidGrant)
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, "", err
	}
	now := a.now()
	g := &Grant{
		Actor:       "ai-bot-" + id,
		RoomID:      roomID,
		Permissions: slices.Clone(a.perms),
		ExpiresAt:   now.Add(a.ttl),
	}
	claims := botClaims{
		Room:  roomID,
		Perms: g.Permissions,
		Name:  BotName,
		Email: BotEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.Actor,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, "", err
	}
	return g, token, nil
}

func (a *Authority) Verify(token string) (*Grant, error) {
	var claims botClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	if claims.Room == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing room or subject", ErrInvalidGrant)
	}
	return &Grant{
		Actor:       claims.Subject,
		RoomID:      claims.Room,
		Permissions: claims.Perms,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Open verifies token and checks the transport is reachable.
func (a *Authority) Open(ctx context.Context, t Transport, token string) (*Session, error) {
	g, err := a.Verify(token)
	if err != nil {
		return nil, err
	}
	if err := t.Ping(ctx); err != nil {
		return nil, fmt.Errorf("realtime: transport unavailable: %w", err)
	}
	return &Session{grant: g, t: t, now: a.now}, nil
}

// Session is an elevated actor bound to a single room.
type Session struct {
	grant *Grant
	t     Transport
	now   func() time.Time
}

func (s *Session) Actor() string  { return s.grant.Actor }
func (s *Session) RoomID() string { return s.grant.RoomID }

func (s *Session) check(p Permission) error {
	if !s.now().Before(s.grant.ExpiresAt) {
		return fmt.Errorf("%w: session expired", ErrInvalidGrant)
	}
	if !s.grant.Allows(p) {
		return fmt.Errorf("%w: %s", ErrForbidden, p)
	}
	return nil
}

func (s *Session) PutRequest(ctx context.Context, req AIRequest) error {
	if err := s.check(PermStorageWrite); err != nil {
		return err
	}
	return s.t.PutRequest(ctx, s.grant.RoomID, req)
}

func (s *Session) GetRequest(ctx context.Context, requestID string) (*AIRequest, error) {
	return s.t.GetRequest(ctx, s.grant.RoomID, requestID)
}

func (s *Session) Publish(ctx context.Context, ev Event) error {
	if err := s.check(PermEventsPublish); err != nil {
		return err
	}
	return s.t.Publish(ctx, s.grant.RoomID, ev)
}
