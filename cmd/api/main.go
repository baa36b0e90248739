package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"autilance/audit"
	"autilance/auth"
	"autilance/config"
	"autilance/db"
	"autilance/dispute"
	"autilance/logging"
	"autilance/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()
	log.Info().Int32("max_conns", pool.Config().MaxConns).Msg("database connection established")

	registry := metrics.New()

	authService := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret).
		WithTokenTTL(cfg.Auth.TokenTTL)

	disputeService := dispute.NewService(
		pool,
		dispute.NewRepository(pool),
		dispute.NewReadModel(pool),
		audit.NewWriter(),
		dispute.NewOutbox(),
	).WithLogger(log).WithRecorder(registry)

	server := &Server{
		disputes:       disputeService,
		auth:           authService,
		db:             pool,
		metrics:        registry,
		log:            log,
		requestTimeout: cfg.Server.RequestTimeout,
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
