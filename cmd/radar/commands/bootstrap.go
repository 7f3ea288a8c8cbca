package commands

import (
	"context"
	"fmt"

	"github.com/wonny/radar/backend/internal/external/tushare"
	"github.com/wonny/radar/backend/internal/pipeline"
	"github.com/wonny/radar/backend/internal/s0_data"
	"github.com/wonny/radar/backend/internal/s0_data/collector"
	"github.com/wonny/radar/backend/internal/s1_universe"
	"github.com/wonny/radar/backend/internal/s2_derive"
	"github.com/wonny/radar/backend/internal/selection"
	"github.com/wonny/radar/backend/internal/strategyconfig"
	"github.com/wonny/radar/backend/pkg/config"
	"github.com/wonny/radar/backend/pkg/database"
	"github.com/wonny/radar/backend/pkg/logger"
	"github.com/wonny/radar/backend/pkg/redis"
)

// cachePrefix namespaces every Redis key of this service
const cachePrefix = "radar"

// app holds the wired components shared by the commands
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client
	repo  *s0_data.Repository

	resolver *s1_universe.Resolver
	pipeline *pipeline.Pipeline
	strategy *strategyconfig.Config
	radar    *selection.Engine
	cache    *redis.Cache
}

// newApp loads configuration and wires storage, the vendor client, the
// pipeline and the radar engine
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache and shared quota")
		rc = &redis.Client{}
	}

	var limiter *redis.RateLimiter
	if rc.Enabled() {
		limiter = redis.NewRateLimiter(rc, cachePrefix)
	}

	repo := s0_data.NewRepository(db.Pool)
	feed := tushare.NewClient(cfg, limiter, log)

	resolver := s1_universe.NewResolver(repo.Instruments, repo.Instruments, feed, cfg.Sync.IndexCode, log)
	col := collector.NewCollector(feed, repo.Market, repo.Financials, log)

	fieldMap, err := s2_derive.DefaultFieldMap()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load field map: %w", err)
	}
	deriver := s2_derive.NewEngine(repo.Market, repo.Financials, repo.Instruments, repo.Derived, fieldMap, log)

	p := pipeline.New(resolver, col, deriver, repo.Market, repo.Runs, pipeline.OptionsFromConfig(cfg), log)

	strategy, err := loadStrategy(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	cache := redis.NewCache(rc, cachePrefix)
	radar := selection.NewEngine(selection.NewRepository(db.Pool), strategy.Signals, log)
	if rc.Enabled() {
		radar.WithCache(cache, cfg.Radar.CacheTTL)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rc,
		repo:     repo,
		resolver: resolver,
		pipeline: p,
		strategy: strategy,
		radar:    radar,
		cache:    cache,
	}, nil
}

// loadStrategy reads and validates the radar presets and signal rules
func loadStrategy(cfg *config.Config, log *logger.Logger) (*strategyconfig.Config, error) {
	strategy, _, err := strategyconfig.Load(cfg.Radar.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load radar config: %w", err)
	}
	if err := strategyconfig.Validate(strategy); err != nil {
		return nil, fmt.Errorf("invalid radar config: %w", err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	return strategy, nil
}

// invalidateRadar drops cached radar results after the derived layer changed
func (a *app) invalidateRadar(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, "radar:*"); err != nil {
		a.log.WithError(err).Warn("Failed to invalidate radar cache")
	}
}

// Close releases the database and Redis connections
func (a *app) Close() {
	a.redis.Close()
	a.db.Close()
}
