package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/collabnote/internal/app"
	"github.com/suPer8Hu/collabnote/internal/config"
	"github.com/suPer8Hu/collabnote/internal/db"
	"github.com/suPer8Hu/collabnote/internal/dispatch"
	"github.com/suPer8Hu/collabnote/internal/httpapi"
	"github.com/suPer8Hu/collabnote/internal/httpapi/handlers"
	"github.com/suPer8Hu/collabnote/internal/logging"
	"github.com/suPer8Hu/collabnote/internal/room"
	"github.com/suPer8Hu/collabnote/internal/store/rabbitmq"
	"github.com/suPer8Hu/collabnote/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	// the service connection is used for room writes only
	serviceDB := gdb
	if cfg.DBServiceDSN != cfg.DBDSN {
		if serviceDB, err = db.Open(cfg.DBDriver, cfg.DBServiceDSN); err != nil {
			log.Fatal().Err(err).Msg("open service database")
		}
	}
	if err := serviceDB.AutoMigrate(append(room.Models(), dispatch.Models()...)...); err != nil {
		log.Fatal().Err(err).Msg("automigrate")
	}

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("realtime runtime")
	}
	defer rt.Close()

	var cache room.ListingCache
	if rt.Redis != nil {
		cache = redisstore.NewListingCache(rt.Redis, cfg.RoomListCacheTTL)
	}
	rooms := room.NewService(room.NewRepo(gdb), room.NewRepo(serviceDB), cache, log)

	var jobs *dispatch.Jobs
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, async ai jobs disabled")
	} else {
		defer pub.Close()
		jobs = dispatch.NewJobs(dispatch.NewJobRepo(serviceDB), rt.Dispatcher, pub, log)
	}

	router := httpapi.NewRouter(handlers.Deps{
		Cfg:        cfg,
		Log:        log,
		Rooms:      rooms,
		Dispatcher: rt.Dispatcher,
		Jobs:       jobs,
		Transport:  rt.Transport,
		Backend:    rt.Backend,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
