package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/collabnote/internal/app"
	"github.com/suPer8Hu/collabnote/internal/config"
	"github.com/suPer8Hu/collabnote/internal/db"
	"github.com/suPer8Hu/collabnote/internal/dispatch"
	"github.com/suPer8Hu/collabnote/internal/logging"
	"github.com/suPer8Hu/collabnote/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBServiceDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if cfg.RealtimeDriver == "memory" {
		log.Warn().Msg("REALTIME_DRIVER=memory: results are not visible to the api process")
	}

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("realtime runtime")
	}
	defer rt.Close()

	// the worker never enqueues, so Jobs gets no publisher
	jobs := dispatch.NewJobs(dispatch.NewJobRepo(gdb), rt.Dispatcher, nil, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("queue declare")
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With().Int("worker", workerID).Logger()
			for d := range deliveries {
				start := time.Now()
				err := jobs.Handle(ctx, d.Body)
				switch {
				case errors.Is(err, dispatch.ErrMalformedJob):
					// dead-letter it, a retry cannot help
					wlog.Error().Err(err).Str("message_id", d.MessageId).Msg("bad message")
					_ = d.Nack(false, false)
					continue
				case err != nil:
					wlog.Warn().Err(err).Str("message_id", d.MessageId).Msg("job interrupted, requeueing")
					_ = d.Nack(false, true)
					continue
				}
				if err := d.Ack(false); err != nil {
					wlog.Error().Err(err).Str("message_id", d.MessageId).Msg("ack failed")
				}
				wlog.Debug().Str("message_id", d.MessageId).Dur("cost", time.Since(start)).Msg("job handled")
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error().Err(errors.New("delivery channel closed")).Msg("consumer stopped")
				stop()
				msgs = nil
				continue
			}
			deliveries <- d
		}
	}
}
