// Package app wires the services shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/config"
	"github.com/suPer8Hu/collabnote/internal/dispatch"
	"github.com/suPer8Hu/collabnote/internal/realtime"
	"github.com/suPer8Hu/collabnote/internal/store/redisstore"
)

// Runtime holds the realtime side of the system: transport, AI provider and
// dispatcher.
type Runtime struct {
	Redis      *redisstore.Store // nil with the memory driver
	Transport  realtime.Transport
	Backend    *ai.BackendClient
	Provider   ai.Provider
	Dispatcher *dispatch.Dispatcher
}

func NewRegistry(backend *ai.BackendClient) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("placeholder", func(context.Context) (ai.Provider, error) {
		return ai.NewPlaceholder(), nil
	})
	reg.Register("backend", func(context.Context) (ai.Provider, error) {
		return backend, nil
	})
	return reg
}

func NewRuntime(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	switch cfg.RealtimeDriver {
	case "memory":
		rt.Transport = realtime.NewHub()
	case "", "redis":
		rt.Redis = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rt.Redis.Ping(ctx); err != nil {
			_ = rt.Redis.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt.Transport = redisstore.NewRealtime(rt.Redis, log)
	default:
		return nil, fmt.Errorf("unsupported REALTIME_DRIVER=%q", cfg.RealtimeDriver)
	}

	// without AI_BACKEND_URL the backend provider calls this service's own
	// proxy routes
	rt.Backend = ai.NewBackendClient(cfg.AIBackendURL, cfg.PublicURL, cfg.AIBackendTimeout, log)

	provider, err := NewRegistry(rt.Backend).Get(ctx, cfg.AIProvider)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Provider = provider

	authority, err := realtime.NewAuthority(cfg.RealtimeSecretKey, cfg.AIBotSessionTTL, cfg.AIBotAccess)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Dispatcher = dispatch.New(provider, authority, rt.Transport, log)

	log.Info().
		Str("realtime", cfg.RealtimeDriver).
		Str("ai_provider", cfg.AIProvider).
		Str("ai_bot_access", cfg.AIBotAccess).
		Msg("runtime ready")
	return rt, nil
}

func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}
