// Package app wires configuration into the repositories, storage backends
// and services shared by the API server and the maintenance CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/config"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/maintenance"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unitsync"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/blob"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/cache"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/database"
)

// App holds every wired component.
type App struct {
	Users  user.Repository
	Venues venue.Repository
	Units  unit.Repository

	Artifacts blob.Storage
	Media     blob.Storage
	Store     *floormap.Store

	UserService  user.Service
	AuthService  auth.Service
	VenueService venue.Service
	UnitService  unit.Service
	MapService   floormap.Service
	Coordinator  *unitsync.Coordinator
	Migrator     *maintenance.PathMigrator
	Normalizer   *maintenance.AssetNormalizer

	closers []func() error
}

// Close releases the database pool and the redis client.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// Build connects to the configured backends. Without DATABASE_URL the
// repositories are kept in memory; without REDIS_ADDR, or when redis is
// unreachable, artifacts are read uncached.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := database.EnsureSchema(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		a.usePostgres(db)
		logger.Info("connected to postgres")
	} else {
		a.Users = user.NewMemoryRepository()
		a.Venues = venue.NewMemoryRepository()
		a.Units = unit.NewMemoryRepository()
		logger.Warn("DATABASE_URL not set, records are kept in memory")
	}

	var err error
	if a.Artifacts, a.Media, err = storages(ctx, cfg.Storage); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("blob storage ready", zap.String("backend", cfg.Storage.Backend),
		zap.String("artifact_root", cfg.Storage.ArtifactRoot), zap.String("media_root", cfg.Storage.MediaRoot))

	a.Store = floormap.NewStore(a.Artifacts, a.artifactCache(ctx, cfg, logger), cfg.CacheTTL, logger)

	a.UserService = user.NewService(a.Users)
	a.AuthService = auth.NewService(a.Users, cfg.JWT.Secret, cfg.JWT.TTL)
	a.VenueService = venue.NewService(a.Venues, logger)
	a.UnitService = unit.NewService(a.Units, a.Venues, logger)
	a.Coordinator = unitsync.NewCoordinator(a.Units, a.Venues, a.Store, logger)
	a.MapService = floormap.NewService(a.Store, a.Venues, a.Coordinator, logger)
	a.Migrator = maintenance.NewPathMigrator(a.Venues, a.Units, a.Artifacts, a.Media, a.Store, logger)
	a.Normalizer = maintenance.NewAssetNormalizer(a.Venues, a.Units, a.Store, logger)
	return a, nil
}

func (a *App) usePostgres(db *sql.DB) {
	a.Users = user.NewPostgresRepository(db)
	a.Venues = venue.NewPostgresRepository(db)
	a.Units = unit.NewPostgresRepository(db)
}

func (a *App) artifactCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Cache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rc := cache.NewRedisCache(client)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, artifact cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		client.Close()
		return nil
	}
	a.closers = append(a.closers, client.Close)
	logger.Info("artifact cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.CacheTTL))
	return rc
}

func storages(ctx context.Context, sc config.StorageConfig) (artifacts, media blob.Storage, err error) {
	switch sc.Backend {
	case "", "local":
		return blob.NewLocal(sc.ArtifactRoot), blob.NewLocal(sc.MediaRoot), nil
	case "s3":
		a, err := blob.NewS3(sc.S3Endpoint, sc.S3AccessKey, sc.S3SecretKey, sc.S3Bucket, sc.ArtifactRoot, sc.S3UseSSL)
		if err != nil {
			return nil, nil, err
		}
		if err := a.CheckBucket(ctx); err != nil {
			return nil, nil, err
		}
		m, err := blob.NewS3(sc.S3Endpoint, sc.S3AccessKey, sc.S3SecretKey, sc.S3Bucket, sc.MediaRoot, sc.S3UseSSL)
		if err != nil {
			return nil, nil, err
		}
		return a, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", sc.Backend)
	}
}
