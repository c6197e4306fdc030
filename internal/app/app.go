// Package app assembles the long-lived collaborators shared by the binaries.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/SectionDrop/internal/config"
	"github.com/dharsanguruparan/SectionDrop/internal/database"
	"github.com/dharsanguruparan/SectionDrop/internal/filestore"
	"github.com/dharsanguruparan/SectionDrop/internal/paths"
	"github.com/dharsanguruparan/SectionDrop/internal/processing"
	"github.com/dharsanguruparan/SectionDrop/internal/queue"
	"github.com/dharsanguruparan/SectionDrop/internal/repository"
	"github.com/dharsanguruparan/SectionDrop/internal/s3storage"
	"github.com/dharsanguruparan/SectionDrop/internal/server"
	"github.com/dharsanguruparan/SectionDrop/internal/store"
	"github.com/dharsanguruparan/SectionDrop/internal/thumbnail"
)

// incoming files older than this are leftovers from a crashed process
const staleIncoming = time.Hour

// App holds everything a running SectionDrop process depends on.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      store.Store
	Files      *filestore.Store
	Generator  *thumbnail.Generator
	Thumbnails server.Submitter

	// Pool is nil when thumbnails go through Redis.
	Pool   *processing.Pool
	Mirror *s3storage.Mirror

	closeStore func()
	queue      *queue.Client
}

// New prepares directories and opens the configured backends.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := paths.Ensure(cfg.UploadsDir, cfg.ThumbnailsDir()); err != nil {
		return nil, err
	}
	if n, err := paths.SweepIncoming(cfg.UploadsDir, staleIncoming); err != nil {
		logger.Warn("sweep incoming uploads", "err", err)
	} else if n > 0 {
		logger.Info("removed stale incoming uploads", "count", n)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Files:     filestore.New(cfg.UploadsDir, cfg.MaxFileSize),
		Generator: thumbnail.NewGenerator(cfg.UploadsDir, cfg.ThumbnailsDir(), logger),
	}
	st, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closeStore = closeStore

	if cfg.QueueEnabled() {
		a.queue = queue.NewClient(asynq.NewClient(RedisOpt(cfg)))
		a.Thumbnails = a.queue
	} else {
		a.Pool = processing.New(a.Generator.Generate, cfg.Workers, logger)
		a.Thumbnails = a.Pool
	}

	if cfg.MirrorEnabled() {
		m, err := s3storage.New(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Mirror = m
	}
	return a, nil
}

// OpenStore opens the metadata backend named by cfg.StoreKind. The returned
// close func is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil
	case config.StorePostgres:
		db, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewFileRecordRepository(db), db.Close, nil
	default:
		return store.NewJSONFile(cfg.StoreFile), func() {}, nil
	}
}

// OpenDatabase connects to Postgres and applies the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Server builds the HTTP server over the App's collaborators.
func (a *App) Server() *server.Server {
	deps := server.Deps{
		Store:      a.Store,
		Files:      a.Files,
		Thumbnails: a.Thumbnails,
		Logger:     a.Logger,
	}
	if a.Mirror != nil {
		deps.Mirror = a.Mirror
	}
	return server.New(a.Config, deps)
}

// Close releases the queue client and the store's connections.
func (a *App) Close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.Logger.Warn("close queue client", "err", err)
		}
	}
	if a.closeStore != nil {
		a.closeStore()
	}
}

// RedisOpt is the asynq connection described by cfg.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Describe summarises the active backends for the startup log line.
func (a *App) Describe() []any {
	thumbs := "pool"
	if a.queue != nil {
		thumbs = "redis"
	}
	return []any{
		"store", a.Config.StoreKind,
		"thumbnails", thumbs,
		"mirror", a.Mirror != nil,
	}
}
