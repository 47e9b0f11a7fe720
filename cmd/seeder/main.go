package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty/internal/adapters/observability"
	"realty/internal/app"
	"realty/internal/bootstrap"
	"realty/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()
	path := flag.String("file", "areas.yaml", "YAML seed file")
	workers := flag.Int("workers", cfg.SeedWorkers, "concurrent creates")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	failed, err := run(ctx, cfg, *path, *workers)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("seeding aborted")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// run seeds every Area in path and returns the number of failed creates.
// Backends opened here are closed before it returns.
func run(ctx context.Context, cfg shared.Config, path string, workers int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	forms, err := loadSeed(f)
	_ = f.Close()
	if err != nil {
		return 0, fmt.Errorf("invalid seed file: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	log.Info().Str("file", path).Int("areas", len(forms)).Int("workers", workers).Msg("seeder starting")

	repo, closeRepo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("document store unavailable: %w", err)
	}
	defer closeRepo()
	// seeded areas carry no uploads, so the image store is never dialled
	store, closeStore, err := bootstrap.OpenImageStore(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("image store unavailable; seeding without it")
	}
	defer closeStore()
	cache, closeCache := bootstrap.OpenCache(ctx, cfg)
	defer closeCache()

	areas, _, err := bootstrap.Services(cfg, repo, store, cache)
	if err != nil {
		return 0, fmt.Errorf("invalid configuration: %w", err)
	}

	failed := seedAll(ctx, areas, forms, workers)
	log.Info().Int("ok", len(forms)-int(failed)).Int64("failed", failed).Msg("seeding completed")
	return failed, nil
}

// seedAll creates every form with at most workers in flight and returns the
// number of failures.
func seedAll(ctx context.Context, areas *app.AreaService, forms []app.Form, workers int) int64 {
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed atomic.Int64

	for i, form := range forms {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			failed.Add(int64(len(forms) - i))
			break
		}

		wg.Add(1)
		go func(i int, form app.Form) {
			defer wg.Done()
			defer sem.Release(1)

			a, err := areas.Create(ctx, form)
			if err != nil {
				failed.Add(1)
				log.Warn().Int("index", i).Str("name", form.Values["name"]).Err(err).Msg("seed failed")
				return
			}
			log.Info().Str("area_id", a.ID).Str("name", a.Name).Msg("seed ok")
		}(i, form)
	}

	wg.Wait()
	return failed.Load()
}
