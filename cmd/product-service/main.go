package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmehra2102/orderflow/internal/config"
	"github.com/dmehra2102/orderflow/internal/product/application"
	productgrpc "github.com/dmehra2102/orderflow/internal/product/infrastructure/grpc"
	producthttp "github.com/dmehra2102/orderflow/internal/product/infrastructure/http"
	productpg "github.com/dmehra2102/orderflow/internal/product/infrastructure/postgres"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/logging"
	"github.com/dmehra2102/orderflow/pkg/shutdown"
	"github.com/dmehra2102/orderflow/pkg/tracing"
)

func main() {
	cfg, err := config.LoadProduct(".")
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

	repo := productpg.NewRepository(log, pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	if cfg.SeedDemoData {
		if _, err := repo.SeedDemo(ctx); err != nil {
			log.Error("seed failed", "err", err)
			os.Exit(1)
		}
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	svc := application.NewService(log, repo, auth.NewGate(log))

	// gRPC server
	gs := productgrpc.NewGRPCServer(productgrpc.NewServer(log, svc), verifier)
	if err := productgrpc.Run(cfg.GRPCAddr, gs, log); err != nil {
		log.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}

	// HTTP server
	handler := producthttp.NewHandler(log, svc, verifier)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(handler.Routes(), "product-http"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
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
		func(context.Context) error { gs.GracefulStop(); return nil },
		tp.Shutdown,
	)
	if err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	log.Info("product-service shutdown complete")
}
