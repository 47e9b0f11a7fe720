// Package bootstrap opens the backends selected by configuration. Each
// opener returns a close func the caller must run on shutdown.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"realty/internal/adapters/imagestore/cloudinary"
	"realty/internal/adapters/imagestore/gcs"
	redisad "realty/internal/adapters/redis"
	"realty/internal/app"
	"realty/internal/domain"
	"realty/internal/shared"
	mongorepo "realty/internal/storage/mongo"
	mysqlrepo "realty/internal/storage/mysql"
)

func noop() {}

func OpenRepository(ctx context.Context, cfg shared.Config) (domain.AreaRepository, func(), error) {
	switch cfg.DocStore {
	case "mongo", "mongodb":
		cl, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, noop, err
		}
		repo := mongorepo.New(cl.Database(cfg.MongoDB))
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo index creation failed")
		}
		log.Info().Str("db", cfg.MongoDB).Msg("mongo connection ok")
		return repo, func() { _ = cl.Disconnect(context.Background()) }, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("sql.Open: %w", err)
		}
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("db.Ping: %w", err)
		}
		if err := mysqlrepo.Migrate(db); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		log.Info().Msg("database connection ok")
		return mysqlrepo.New(db), func() { _ = db.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown DOC_STORE %q (want mongo or mysql)", cfg.DocStore)
	}
}

func OpenImageStore(ctx context.Context, cfg shared.Config) (domain.ImageStore, func(), error) {
	switch cfg.ImageStore {
	case "cloudinary":
		cl, err := cloudinary.New("", cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryRPS)
		if err != nil {
			return nil, noop, fmt.Errorf("cloudinary: %w", err)
		}
		return cl, noop, nil
	case "gcs":
		st, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSCDNDomain)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown IMAGE_STORE %q (want cloudinary or gcs)", cfg.ImageStore)
	}
}

// OpenCache returns a nil Cache when REDIS_ADDR is unset or unreachable;
// the query side then reads straight from the repository.
func OpenCache(ctx context.Context, cfg shared.Config) (domain.Cache, func()) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("read cache disabled")
		return nil, noop
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, read cache disabled")
		_ = c.Close()
		return nil, noop
	}
	return c, func() { _ = c.Close() }
}

// Services builds the write and read sides over the given backends.
func Services(cfg shared.Config, repo domain.AreaRepository, store domain.ImageStore, cache domain.Cache) (*app.AreaService, *app.QueryService, error) {
	mode, ok := app.ParseMatchMode(cfg.ImageMatchMode)
	if !ok {
		return nil, nil, fmt.Errorf("unknown IMAGE_MATCH_MODE %q", cfg.ImageMatchMode)
	}
	policy := app.DefaultCleanupPolicy()
	policy.PruneDetached = cfg.PruneDetachedImages

	imgs := app.NewImageOrchestrator(store, policy, cfg.ImageFolder, domain.Transform{
		Width:  cfg.ImageMaxDimension,
		Height: cfg.ImageMaxDimension,
		Crop:   "limit",
	})
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)
	return app.NewAreaService(repo, imgs, cache, mode).WithQueries(q), q, nil
}
