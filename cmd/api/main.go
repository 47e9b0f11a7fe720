package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"realty/internal/adapters/auth"
	server "realty/internal/adapters/http_server"
	"realty/internal/adapters/observability"
	"realty/internal/bootstrap"
	"realty/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("API failed")
	}
	log.Info().Msg("API stopped")
}

// run owns every opened backend; they are closed before it returns.
func run(ctx context.Context, cfg shared.Config) error {
	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, observability.MetricsHandler(reg))

	// deps
	repo, closeRepo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("document store %q unavailable: %w", cfg.DocStore, err)
	}
	defer closeRepo()

	store, closeStore, err := bootstrap.OpenImageStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("image store %q unavailable: %w", cfg.ImageStore, err)
	}
	defer closeStore()

	cache, closeCache := bootstrap.OpenCache(ctx, cfg)
	defer closeCache()

	areas, q, err := bootstrap.Services(cfg, repo, store, cache)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var verifier *auth.Verifier
	switch {
	case cfg.JWTSecret != "":
		verifier = auth.NewVerifier(cfg.JWTSecret)
	case cfg.IsDev():
		log.Warn().Msg("JWT_SECRET empty: mutating routes are unauthenticated (dev only)")
	default:
		return errors.New("JWT_SECRET is required outside development")
	}

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins, RequestTimeout: cfg.RequestLimit})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Areas:  areas,
		Q:      q,
		Auth:   verifier,
		Limits: server.Limits{MaxFiles: cfg.MaxUploadFiles, MaxBytes: cfg.MaxUploadBytes},
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("doc_store", cfg.DocStore).Str("image_store", cfg.ImageStore).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
