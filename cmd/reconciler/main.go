package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/volt-storefront/internal/payment/application"
	paymentkafka "github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/kafka"
	"github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/memory"
	pg "github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
	"github.com/dmehra2102/volt-storefront/pkg/config"
	"github.com/dmehra2102/volt-storefront/pkg/idempotency"
	"github.com/dmehra2102/volt-storefront/pkg/logging"
	"github.com/dmehra2102/volt-storefront/pkg/metrics"
	"github.com/dmehra2102/volt-storefront/pkg/shutdown"
	"github.com/dmehra2102/volt-storefront/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Options{Service: "reconciler", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("reconciler stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("reconciler shutdown")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ADDR is required")
	}

	tp, err := tracing.Init(ctx, "reconciler", cfg.OTelEndpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, cfg.DedupTTL)

	var repo application.DiscrepancyRepository = memory.NewRepository()
	if cfg.ReconcilerStore == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return fmt.Errorf("pg connect: %w", err)
		}
		defer pool.Close()

		pgRepo := pg.NewRepository(log, pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("pg schema: %w", err)
		}
		repo = pgRepo
	}

	svc := application.NewService(log, repo, clock.NewSystem())
	reader := paymentkafka.NewReader(cfg.KafkaBrokers, cfg.OutboxTopic, cfg.ConsumerGroup)
	consumer := paymentkafka.NewConsumer(log, reader, svc, idem)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/discrepancies", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		list, err := svc.Discrepancies(req.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	})

	srv := &http.Server{
		Addr:         cfg.ReconcilerAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.ReconcilerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
