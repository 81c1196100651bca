package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	cartapp "github.com/dmehra2102/volt-storefront/internal/cart/application"
	carthttp "github.com/dmehra2102/volt-storefront/internal/cart/infrastructure/http"
	checkoutapp "github.com/dmehra2102/volt-storefront/internal/orchestrator/application"
	checkouthttp "github.com/dmehra2102/volt-storefront/internal/orchestrator/infrastructure/http"
	"github.com/dmehra2102/volt-storefront/internal/order/application"
	orderfile "github.com/dmehra2102/volt-storefront/internal/order/infrastructure/file"
	orderhttp "github.com/dmehra2102/volt-storefront/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/volt-storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/volt-storefront/internal/order/infrastructure/postgres"
	orderredis "github.com/dmehra2102/volt-storefront/internal/order/infrastructure/redis"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
	"github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/backend"
	"github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/widget"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
	"github.com/dmehra2102/volt-storefront/pkg/config"
	"github.com/dmehra2102/volt-storefront/pkg/idempotency"
	"github.com/dmehra2102/volt-storefront/pkg/logging"
	"github.com/dmehra2102/volt-storefront/pkg/metrics"
	"github.com/dmehra2102/volt-storefront/pkg/outbox"
	"github.com/dmehra2102/volt-storefront/pkg/ratelimit"
	"github.com/dmehra2102/volt-storefront/pkg/shutdown"
	"github.com/dmehra2102/volt-storefront/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Options{Service: "storefront", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("storefront shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tp, err := tracing.Init(ctx, "storefront", cfg.OTelEndpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	clk := clock.NewSystem()

	// Ledger backend
	var (
		store application.LedgerStore
		rdb   *redis.Client
		pool  *pgxpool.Pool
	)
	switch cfg.LedgerBackend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		store = orderredis.NewStore(log, rdb, cfg.LedgerKey)
	case "postgres":
		pool, err = pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return fmt.Errorf("pg connect: %w", err)
		}
		defer pool.Close()
		if err := orderpg.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("pg schema: %w", err)
		}
		store = orderpg.NewLedgerStore(log, pool, cfg.LedgerKey)
	default:
		store = orderfile.NewStore(log, cfg.LedgerPath)
	}
	log.Info("ledger backend", "backend", cfg.LedgerBackend)

	persister := application.NewAsyncPersister(log, store)
	ledger := application.NewLedger(log, store, persister)
	ledger.Load(ctx)

	var guard idempotency.Guard = idempotency.NewMemory(clk, cfg.DedupTTL)
	if rdb != nil {
		guard = idempotency.NewStore(rdb, cfg.DedupTTL)
	}

	// Checkout
	cart := cartapp.NewStore()
	gateway := backend.NewClient(log, cfg.APIBaseURL, cfg.HTTPTimeout)
	bridge := widget.NewBridge(log, cfg.WidgetScriptURL, cfg.HTTPTimeout)

	coordOpts := []checkoutapp.Option{checkoutapp.WithCommitGuard(guard), checkoutapp.WithClock(clk)}

	// Order events
	var relay *outbox.Relay
	if len(cfg.KafkaBrokers) > 0 {
		var obStore outbox.Store = outbox.NewMemoryStore()
		if pool != nil {
			obStore = orderpg.NewOutboxStore(log, pool)
		}
		writer := orderkafka.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()

		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay = outbox.NewRelay(log, obStore, dispatch, "storefront-relay")
		coordOpts = append(coordOpts, checkoutapp.WithPublisher(outbox.NewPublisher(obStore, "order")))
	} else {
		log.Info("KAFKA_ADDR not set, order events disabled")
	}

	coord := checkoutapp.NewCoordinator(log, cart, ledger, gateway, bridge, checkoutapp.Settings{
		KeyID:       cfg.PaymentKeyID,
		APIBaseURL:  cfg.APIBaseURL,
		Currency:    cfg.Currency,
		Name:        cfg.MerchantName,
		Description: cfg.MerchantDescription,
		Image:       cfg.MerchantImage,
		ThemeColor:  cfg.ThemeColor,
		Prefill: paymentdomain.Prefill{
			Name:    cfg.PrefillName,
			Email:   cfg.PrefillEmail,
			Contact: cfg.PrefillContact,
		},
		Notes: map[string]string{"platform": "web", "app": "volt-pizza"},
	}, coordOpts...)

	g, gctx := errgroup.WithContext(ctx)

	limiter := ratelimit.New(log, cfg.PayRatePerSec, cfg.PayRatePerSec)
	checkout := checkouthttp.NewHandler(gctx, log, coord, bridge, limiter.Handler)

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Mount("/cart", carthttp.NewHandler(log, cart).Routes())
	r.Mount("/checkout", checkout.Routes())
	r.Mount("/orders", orderhttp.NewHandler(log, ledger, clk, time.Local).Routes())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// The persister outlives the HTTP server so the last commits are flushed.
	persistCtx, stopPersist := context.WithCancel(context.Background())
	defer stopPersist()

	g.Go(func() error { return persister.Run(persistCtx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		err := srv.Shutdown(shutdownCtx)
		checkout.Wait()
		stopPersist()
		return err
	})

	return g.Wait()
}
