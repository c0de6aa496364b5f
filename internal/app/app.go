package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/catalogsync/internal/config"
	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/reconcile"
	"github.com/MrSnakeDoc/catalogsync/internal/redis"
	"github.com/MrSnakeDoc/catalogsync/internal/report"
	"github.com/MrSnakeDoc/catalogsync/internal/sources/registry"
	"github.com/MrSnakeDoc/catalogsync/internal/sources/seed"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
	"github.com/MrSnakeDoc/catalogsync/internal/store/memory"
	"github.com/MrSnakeDoc/catalogsync/internal/store/notion"
	redisstore "github.com/MrSnakeDoc/catalogsync/internal/store/redis"
	"github.com/MrSnakeDoc/catalogsync/internal/utils"
	"github.com/MrSnakeDoc/catalogsync/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	store       store.Store
	redisClient *goredis.Client
	syncer      *reconcile.Syncer
}

// New wires one sync run from cfg. The caller must Close the app.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, rep report.Reporter) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log.Debugf("cfg: %+v", cfg.Redacted())

	a := &App{cfg: cfg, logger: log}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = st

	var seedPlugins []domain.Plugin
	if cfg.SeedFile != "" {
		seedPlugins, err = seed.LoadPlugins(cfg.SeedFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("seed file loaded",
			logger.String("file", cfg.SeedFile),
			logger.Int("plugins", len(seedPlugins)))
	}

	client := registry.NewClient(registry.Options{
		ListURL:  cfg.PluginListURL,
		RawURL:   cfg.GitHubRawURL,
		APIURL:   cfg.GitHubAPIURL,
		Token:    cfg.GitHubToken,
		Branches: cfg.ManifestBranches,
		Timeout:  cfg.HTTPTimeout,
	}, log)
	ingestor := registry.NewIngestor(client, cfg.CheckArchived, log)

	a.syncer = reconcile.NewSyncer(st, ingestor, rep, log, reconcile.Options{
		Limit:       cfg.EffectiveLimit(),
		SkipArchive: !cfg.ArchiveEnabled(),
		Seed:        seedPlugins,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store {
	case config.StoreNotion:
		return notion.New(notion.Options{
			BaseURL:    a.cfg.NotionAPIURL,
			Token:      a.cfg.NotionToken,
			DatabaseID: a.cfg.NotionDatabaseID,
			PageSize:   a.cfg.NotionPageSize,
			Timeout:    a.cfg.HTTPTimeout,
		}, a.logger)

	case config.StoreRedis:
		// Fail fast if Redis is unavailable
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           a.cfg.RedisAddr,
			User:           a.cfg.RedisUser,
			Password:       a.cfg.RedisPassword,
			DB:             a.cfg.RedisDB,
			DialTimeout:    a.cfg.RedisDT,
			ReadTimeout:    a.cfg.RedisRT,
			WriteTimeout:   a.cfg.RedisWT,
			ConnectTimeout: a.cfg.RedisConnectTimeout,
			RetryInterval:  a.cfg.RedisRetryInterval,
			MaxWait:        a.cfg.RedisMaxWait,
			PingTimeout:    a.cfg.RedisPingTimeout,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		return redisstore.NewStore(client, a.cfg.RedisPrefix, 0), nil

	case config.StoreMemory:
		a.logger.Warn("using the in-memory store, nothing will be persisted")
		return memory.New(0), nil
	}
	return nil, fmt.Errorf("unknown store %q", a.cfg.Store)
}

// Run performs one reconciliation pass.
func (a *App) Run(ctx context.Context) (reconcile.Summary, error) {
	a.logger.Infof("🚀 Starting %s", version.String())
	a.logger.Info("sync starting",
		logger.String("store", a.cfg.Store),
		logger.String("env", a.cfg.Env),
		logger.Int("limit", a.cfg.EffectiveLimit()),
		logger.Bool("archive", a.cfg.ArchiveEnabled()))

	sum, err := a.syncer.Run(ctx)
	if err != nil {
		return sum, err
	}

	a.logger.Info("✅ sync finished",
		logger.Int("fetched", sum.Fetched),
		logger.Int("created", sum.Created),
		logger.Int("updated", sum.Updated),
		logger.Int("unchanged", sum.Unchanged),
		logger.Int("orphans", sum.Orphans),
		logger.Int("archived", sum.Archived),
		logger.Int("revisions_reused", sum.RevisionsReused),
		logger.Int("revision_failures", sum.RevisionFailures),
		logger.Int("duplicates", sum.Duplicates))
	return sum, nil
}

// Store exposes the opened store.
func (a *App) Store() store.Store {
	return a.store
}

// Close releases the store connection, if any.
func (a *App) Close() {
	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger)
		a.redisClient = nil
	}
}
