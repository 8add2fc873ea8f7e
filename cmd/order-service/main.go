package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmehra2102/orderflow/internal/config"
	"github.com/dmehra2102/orderflow/internal/order/application"
	ordergrpc "github.com/dmehra2102/orderflow/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/orderflow/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/orderflow/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/orderflow/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/orderflow/internal/order/infrastructure/productclient"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/idempotency"
	"github.com/dmehra2102/orderflow/pkg/logging"
	"github.com/dmehra2102/orderflow/pkg/outbox"
	"github.com/dmehra2102/orderflow/pkg/shutdown"
	"github.com/dmehra2102/orderflow/pkg/tracing"
)

type inventory interface {
	application.InventoryClient
	application.StockReserver
}

func main() {
	cfg, err := config.LoadOrder(".")
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.AppName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn("using development JWT secret")
	}

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	}, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres Setup
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	if cfg.SeedDemoData {
		if _, err := repo.SeedDemo(ctx, time.Now()); err != nil {
			log.Error("seed failed", "err", err)
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	// Kafka producer & outbox relay
	writer := orderkafka.NewWriter(log, []string{cfg.KafkaAddr})
	store := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderTopic)
	relay := outbox.NewRelay(log, store, dispatch, cfg.AppName+"-relay")

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	inv, closeInv, err := newInventory(log, cfg, serviceCredentials(cfg, verifier))
	if err != nil {
		log.Error("inventory client failed", "err", err)
		os.Exit(1)
	}

	gate := auth.NewGate(log)
	opts := []application.Option{}
	if cfg.StockPolicy == config.StockPolicyReserve {
		opts = append(opts, application.WithReservation(inv))
	}
	svc := application.NewService(log, repo, inv, gate, opts...)
	log.Info("order placement configured", "stock_policy", cfg.StockPolicy, "inventory_transport", cfg.InventoryTransport)

	handler := orderhttp.NewHandler(log, svc, verifier, idem)

	// HTTP server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(handler.Routes(), "order-http"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Run relay
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	err = shutdown.Drain(10*time.Second,
		srv.Shutdown,
		func(ctx context.Context) error {
			select {
			case <-relayDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		func(context.Context) error { return writer.Close() },
		closeInv,
		tp.Shutdown,
	)
	if err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	log.Info("order-service shutdown complete")
}

func serviceCredentials(cfg config.Order, verifier *auth.Verifier) auth.TokenSource {
	if cfg.ServiceToken != "" {
		return auth.StaticToken(cfg.ServiceToken)
	}
	return auth.NewSelfIssued(verifier, cfg.AppName, cfg.ServiceTokenTTL, auth.RoleService)
}

func newInventory(log *slog.Logger, cfg config.Order, creds auth.TokenSource) (inventory, shutdown.Func, error) {
	if cfg.InventoryTransport == config.TransportGRPC {
		c, err := ordergrpc.NewInventoryClient(log, cfg.InventoryAddr, creds, cfg.InventoryTimeout, cfg.InventoryMaxRetries)
		if err != nil {
			return nil, nil, err
		}
		return c, func(context.Context) error { return c.Close() }, nil
	}
	c := productclient.New(log, cfg.InventoryURL, creds, cfg.InventoryTimeout, productclient.WithRetries(cfg.InventoryMaxRetries))
	return c, nil, nil
}
