package selection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/strategyconfig"
	"github.com/wonny/radar/backend/pkg/logger"
	"github.com/wonny/radar/backend/pkg/redis"
)

// SnapshotSource provides the as-of date and the joined rows
type SnapshotSource interface {
	AsOfDate(ctx context.Context) (time.Time, bool, error)
	Snapshot(ctx context.Context, asOf time.Time, pool contracts.Pool, pointInTime bool) ([]Snapshot, error)
}

// ResultCache stores query results. *redis.Cache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

var _ ResultCache = (*redis.Cache)(nil)

// Engine answers radar queries over the latest derived snapshot. It never
// writes.
type Engine struct {
	source   SnapshotSource
	rules    []strategyconfig.SignalRule
	rulesKey string
	cache    ResultCache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewEngine creates a radar engine with ordered signal rules
func NewEngine(source SnapshotSource, rules []strategyconfig.SignalRule, log *logger.Logger) *Engine {
	return &Engine{
		source:   source,
		rules:    rules,
		rulesKey: rulesFingerprint(rules),
		logger:   log.WithField("module", "selection"),
	}
}

// WithCache caches results per as-of date and filter set for ttl
func (e *Engine) WithCache(cache ResultCache, ttl time.Duration) *Engine {
	e.cache = cache
	e.ttl = ttl
	return e
}

// Query screens the latest as-of snapshot. An empty derived layer yields
// an empty result.
func (e *Engine) Query(ctx context.Context, f Filters) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	asOf, ok, err := e.source.AsOfDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Warn("Derived layer is empty, nothing to screen")
		return &Result{Rejected: map[string]int{}, Rows: []Row{}}, nil
	}

	key := redis.RadarKey(contracts.FormatDate(asOf), f.Fingerprint()+e.rulesKey)
	if e.cache != nil {
		var cached Result
		hit, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			e.logger.WithError(err).Warn("Radar cache read failed")
		} else if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	snapshots, err := e.source.Snapshot(ctx, asOf, f.Pool, f.PointInTime)
	if err != nil {
		return nil, err
	}

	rows, rejected := Screen(snapshots, f, e.rules)
	result := &Result{
		AsOf:       asOf,
		Considered: len(snapshots),
		Rejected:   rejected,
		Rows:       rows,
	}

	e.logger.WithFields(map[string]interface{}{
		"as_of":      contracts.FormatDate(asOf),
		"pool":       f.Pool,
		"considered": result.Considered,
		"passed":     len(rows),
		"rejected":   rejected,
	}).Info("Radar query completed")

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, result, e.ttl); err != nil {
			e.logger.WithError(err).Warn("Radar cache write failed")
		}
	}
	return result, nil
}

func rulesFingerprint(rules []strategyconfig.SignalRule) string {
	h := sha256.New()
	for _, r := range rules {
		fmt.Fprintf(h, "%s|%s|%s|%g;", r.Label, r.Metric, r.Op, r.Threshold)
	}
	return hex.EncodeToString(h.Sum(nil)[:4])
}
