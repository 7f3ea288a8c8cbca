package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/s0_data/collector"
	"github.com/wonny/radar/backend/internal/s1_universe"
	"github.com/wonny/radar/backend/internal/s2_derive"
	"github.com/wonny/radar/backend/pkg/config"
	"github.com/wonny/radar/backend/pkg/logger"
)

// ErrEmptyUniverse means there is nothing to sync. Modes warn and skip the
// stage instead of failing.
var ErrEmptyUniverse = errors.New("universe is empty")

// Stage names carried by progress events and unit failures
const (
	StageUniverse     = "universe"
	StageStockList    = "stock_list"
	StageFetch        = "fetch"
	StageDerive       = "derive"
	StageSnapshot     = "snapshot"
	StageAnnouncement = "announcement"
	StageCalendar     = "calendar"
)

// announcementLookback bounds the statement re-fetch of a disclosing instrument
const announcementLookback = 365 * 24 * time.Hour

// derivedProgressEvery is the derive-stage progress granularity
const derivedProgressEvery = 10

// Resolver is the S1 collaborator
type Resolver interface {
	Resolve(ctx context.Context) (contracts.Universe, error)
	SyncStockList(ctx context.Context) (*s1_universe.StockListResult, error)
}

// Fetcher is the raw-layer collaborator
type Fetcher interface {
	FetchInstrumentHistory(ctx context.Context, code string, start, end time.Time) (*collector.FetchResult, error)
	FetchMarketSnapshot(ctx context.Context, date time.Time, universe contracts.Universe) (*collector.SnapshotResult, error)
	FetchDisclosures(ctx context.Context, date time.Time) ([]contracts.DisclosureEvent, error)
	FetchAnnouncedFinancials(ctx context.Context, annDate time.Time, universe contracts.Universe) (*collector.AnnouncedResult, error)
	TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// Deriver is the S2 collaborator
type Deriver interface {
	DeriveInstrument(ctx context.Context, code string) (s2_derive.DeriveResult, error)
}

// RawState reports how far the raw layer reaches
type RawState interface {
	LatestTradeDate(ctx context.Context) (time.Time, bool, error)
}

// Options tunes a pipeline
type Options struct {
	StartDate time.Time     // first date of a full backfill
	UnitPause time.Duration // pause between units, shared by all workers
	Workers   int
}

// OptionsFromConfig reads the sync section of the configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StartDate: cfg.Sync.StartDate,
		UnitPause: cfg.Sync.UnitPause,
		Workers:   cfg.Sync.Workers,
	}
}

// Pipeline sequences universe resolution, raw fetch and derivation
// ⭐ SSOT: every sync mode is orchestrated here
type Pipeline struct {
	resolver Resolver
	fetcher  Fetcher
	deriver  Deriver
	raw      RawState
	runs     contracts.RunRepository
	opts     Options
	limiter  *rate.Limiter
	logger   *logger.Logger
	now      func() time.Time
}

// New creates a new pipeline. runs may be nil to skip run persistence.
func New(resolver Resolver, fetcher Fetcher, deriver Deriver, raw RawState, runs contracts.RunRepository, opts Options, log *logger.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	limit := rate.Inf
	if opts.UnitPause > 0 {
		limit = rate.Every(opts.UnitPause)
	}

	return &Pipeline{
		resolver: resolver,
		fetcher:  fetcher,
		deriver:  deriver,
		raw:      raw,
		runs:     runs,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log.WithField("module", "pipeline"),
		now:      time.Now,
	}
}

// Run dispatches a mode by name. date applies to snapshot, announcement and
// daily and defaults to today; codes applies to vertical and derive.
func (p *Pipeline) Run(ctx context.Context, mode contracts.SyncMode, date time.Time, codes []string, progress ProgressFunc) (*contracts.RunReport, error) {
	if date.IsZero() {
		date = p.now()
	}
	switch mode {
	case contracts.ModeFullBackfill:
		return p.FullBackfill(ctx, progress)
	case contracts.ModeVerticalBackfill:
		return p.VerticalBackfill(ctx, codes, progress)
	case contracts.ModeSnapshot:
		return p.HorizontalSnapshot(ctx, date, progress)
	case contracts.ModeAnnouncement:
		return p.AnnouncementSync(ctx, date, progress)
	case contracts.ModeDaily:
		return p.DailyRoutine(ctx, date, progress)
	case contracts.ModeDerive:
		return p.Derive(ctx, codes, progress)
	}
	return nil, fmt.Errorf("unknown sync mode %q", mode)
}

// FullBackfill fetches and derives every universe instrument from the
// configured start date
func (p *Pipeline) FullBackfill(ctx context.Context, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeFullBackfill, progress)

	universe, err := p.universe(ctx, r)
	if err != nil {
		return p.finish(ctx, r, err)
	}

	end := contracts.Truncate(p.now())
	r.info(StageFetch, "Full backfill of %d instruments from %s", universe.Len(), contracts.FormatDate(p.opts.StartDate))
	err = p.backfill(ctx, r, universe.Codes(), p.opts.StartDate, end)
	return p.finish(ctx, r, err)
}

// VerticalBackfill fetches and derives an explicit instrument subset
func (p *Pipeline) VerticalBackfill(ctx context.Context, codes []string, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeVerticalBackfill, progress)

	codes = dedupe(codes)
	if len(codes) == 0 {
		r.warn(StageFetch, "No instruments given, nothing to backfill")
		return p.finish(ctx, r, nil)
	}

	end := contracts.Truncate(p.now())
	r.info(StageFetch, "Vertical backfill of %d instruments from %s", len(codes), contracts.FormatDate(p.opts.StartDate))
	err := p.backfill(ctx, r, codes, p.opts.StartDate, end)
	return p.finish(ctx, r, err)
}

// HorizontalSnapshot pulls the full-market tables of one date, keeps the
// universe and commits once. Derivation is deferred.
func (p *Pipeline) HorizontalSnapshot(ctx context.Context, date time.Time, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeSnapshot, progress)

	universe, err := p.universe(ctx, r)
	if err != nil {
		return p.finish(ctx, r, err)
	}

	err = p.snapshots(ctx, r, universe, []time.Time{contracts.Truncate(date)})
	return p.finish(ctx, r, err)
}

// AnnouncementSync re-fetches the trailing year for universe instruments
// that disclosed on date. Derivation is deferred.
func (p *Pipeline) AnnouncementSync(ctx context.Context, date time.Time, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeAnnouncement, progress)

	universe, err := p.universe(ctx, r)
	if err != nil {
		return p.finish(ctx, r, err)
	}

	err = p.announcements(ctx, r, universe, contracts.Truncate(date))
	return p.finish(ctx, r, err)
}

// Derive recomputes the derived layer for codes, or for the whole universe
// when codes is empty
func (p *Pipeline) Derive(ctx context.Context, codes []string, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeDerive, progress)

	codes = dedupe(codes)
	if len(codes) == 0 {
		universe, err := p.universe(ctx, r)
		if err != nil {
			return p.finish(ctx, r, err)
		}
		codes = universe.Codes()
	}

	err := p.derive(ctx, r, codes)
	return p.finish(ctx, r, err)
}

// DailyRoutine resyncs the stock list, snapshots every trading day missing
// since the last persisted bar, runs the announcement sync for those days
// and finally re-derives the whole universe
func (p *Pipeline) DailyRoutine(ctx context.Context, today time.Time, progress ProgressFunc) (*contracts.RunReport, error) {
	r := p.start(contracts.ModeDaily, progress)
	today = contracts.Truncate(today)

	// 1. Stock list
	r.event(StageStockList, contracts.LevelInfo, 1, 4, "Syncing stock list")
	if res, err := p.resolver.SyncStockList(p.unit(ctx)); err != nil {
		r.failed("stock_list", StageStockList, err)
	} else {
		r.succeeded()
		r.info(StageStockList, "Stock list: %d instruments, %d index members", res.Instruments, res.IndexMembers)
	}
	if err := ctx.Err(); err != nil {
		return p.finish(ctx, r, err)
	}

	universe, err := p.universe(ctx, r)
	if err != nil {
		return p.finish(ctx, r, err)
	}

	// 2. Snapshots
	r.event(StageSnapshot, contracts.LevelInfo, 2, 4, "Snapshotting missing trading days")
	days, err := p.missingDays(ctx, r, today)
	if err != nil {
		r.failed("calendar", StageCalendar, err)
	}
	if err := p.snapshots(ctx, r, universe, days); err != nil {
		return p.finish(ctx, r, err)
	}

	// 3. Announcements
	r.event(StageAnnouncement, contracts.LevelInfo, 3, 4, "Checking announcements for %d days", len(days))
	for _, day := range days {
		if err := p.announcements(ctx, r, universe, day); err != nil {
			return p.finish(ctx, r, err)
		}
	}

	// 4. Derive
	r.event(StageDerive, contracts.LevelInfo, 4, 4, "Deriving %d instruments", universe.Len())
	err = p.derive(ctx, r, universe.Codes())
	return p.finish(ctx, r, err)
}

// missingDays lists the open trading days after the last persisted bar up to
// today. An empty raw layer yields today only.
func (p *Pipeline) missingDays(ctx context.Context, r *run, today time.Time) ([]time.Time, error) {
	latest, ok, err := p.raw.LatestTradeDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("read latest trade date: %w", err)
	}
	if !ok {
		r.warn(StageSnapshot, "Raw layer is empty; snapshotting %s only, run a full backfill for history", contracts.FormatDate(today))
		return []time.Time{today}, nil
	}

	from := contracts.Truncate(latest).AddDate(0, 0, 1)
	if from.After(today) {
		r.info(StageSnapshot, "Raw layer is up to date (%s)", contracts.FormatDate(latest))
		return nil, nil
	}

	days, err := p.fetcher.TradingDays(p.unit(ctx), from, today)
	if err != nil {
		return nil, err
	}
	r.info(StageSnapshot, "%d trading days missing since %s", len(days), contracts.FormatDate(latest))
	return days, nil
}

// backfill fetches [start, end] and derives each code
func (p *Pipeline) backfill(ctx context.Context, r *run, codes []string, start, end time.Time) error {
	total := len(codes)
	var done int64

	return p.forEach(ctx, codes, func(ctx context.Context, code string) {
		step := int(atomic.AddInt64(&done, 1))

		fetched, err := p.fetcher.FetchInstrumentHistory(ctx, code, start, end)
		if err != nil {
			r.failed(code, StageFetch, err)
			return
		}

		derived, err := p.deriver.DeriveInstrument(ctx, code)
		if err != nil {
			r.failed(code, StageDerive, err)
			return
		}

		if len(fetched.CategoryErrors) > 0 {
			r.failed(code, StageFetch, categoryError(fetched.CategoryErrors))
			return
		}

		if fetched.Empty() && derived.Empty() {
			r.skipped()
			r.event(StageFetch, contracts.LevelInfo, step, total, "[%d/%d] %s: no data", step, total, code)
			return
		}

		r.succeeded()
		r.event(StageFetch, contracts.LevelInfo, step, total, "[%d/%d] %s: %d bars, %d indicators, %d statements",
			step, total, code, fetched.BarCount, derived.Indicators, derived.Financials)
	})
}

// snapshots commits one horizontal snapshot per date
func (p *Pipeline) snapshots(ctx context.Context, r *run, universe contracts.Universe, days []time.Time) error {
	total := len(days)
	units := make([]string, 0, total)
	for _, d := range days {
		units = append(units, contracts.FormatDate(d))
	}

	var done int64
	return p.forEach(ctx, units, func(ctx context.Context, unit string) {
		step := int(atomic.AddInt64(&done, 1))
		date, _ := contracts.ParseDate(unit)

		res, err := p.fetcher.FetchMarketSnapshot(ctx, date, universe)
		if err != nil {
			r.failed(unit, StageSnapshot, err)
			return
		}
		if !res.IsTradingDay() {
			r.skipped()
			r.event(StageSnapshot, contracts.LevelInfo, step, total, "[%d/%d] %s: no market data", step, total, unit)
			return
		}

		r.succeeded()
		r.event(StageSnapshot, contracts.LevelInfo, step, total, "[%d/%d] %s: kept %d of %d bars",
			step, total, unit, res.Bars, res.MarketRows)
	})
}

// announcements re-fetches the trailing year of universe instruments that
// disclosed on date
func (p *Pipeline) announcements(ctx context.Context, r *run, universe contracts.Universe, date time.Time) error {
	stage := StageAnnouncement
	day := contracts.FormatDate(date)

	events, err := p.fetcher.FetchDisclosures(p.unit(ctx), date)
	if err != nil {
		r.failed("disclosures:"+day, stage, err)
		return ctx.Err()
	}

	disclosed := make([]string, 0, len(events))
	for _, ev := range events {
		disclosed = append(disclosed, ev.TSCode)
	}
	codes := universe.Intersect(disclosed)
	sort.Strings(codes)

	if len(codes) == 0 {
		r.info(stage, "%s: no universe instrument disclosed (%d disclosures)", day, len(events))
		return nil
	}
	r.info(stage, "%s: %d of %d disclosures are in the universe", day, len(codes), len(events))

	codes = p.announcedFastPath(ctx, r, universe, date, codes)
	if len(codes) == 0 {
		return ctx.Err()
	}

	start := date.Add(-announcementLookback)
	total := len(codes)
	var done int64

	return p.forEach(ctx, codes, func(ctx context.Context, code string) {
		step := int(atomic.AddInt64(&done, 1))

		fetched, err := p.fetcher.FetchInstrumentHistory(ctx, code, start, date)
		if err != nil {
			r.failed(code, stage, err)
			return
		}
		if len(fetched.CategoryErrors) > 0 {
			r.failed(code, stage, categoryError(fetched.CategoryErrors))
			return
		}
		if fetched.Empty() {
			r.skipped()
			return
		}

		r.succeeded()
		r.event(stage, contracts.LevelInfo, step, total, "[%d/%d] %s: refreshed %s", step, total, code, day)
	})
}

// announcedFastPath lands the statements announced on date with one call per
// category. Disclosed codes it covered count as refreshed; the rest are
// returned for the per-instrument re-fetch. When a category failed every
// disclosed code is returned.
func (p *Pipeline) announcedFastPath(ctx context.Context, r *run, universe contracts.Universe, date time.Time, disclosed []string) []string {
	stage := StageAnnouncement
	day := contracts.FormatDate(date)

	res, err := p.fetcher.FetchAnnouncedFinancials(p.unit(ctx), date, universe)
	if err != nil {
		r.warn(stage, "%s: announced statements unavailable, re-fetching per instrument: %v", day, err)
		return disclosed
	}
	if !res.Complete() {
		r.warn(stage, "%s: announced statements incomplete, re-fetching per instrument: %v", day, categoryError(res.CategoryErrors))
		return disclosed
	}

	covered := make(map[string]struct{}, len(res.Codes))
	for _, code := range res.Codes {
		covered[code] = struct{}{}
	}

	rest := make([]string, 0, len(disclosed))
	for _, code := range disclosed {
		if _, ok := covered[code]; ok {
			r.succeeded()
			continue
		}
		rest = append(rest, code)
	}
	if n := len(disclosed) - len(rest); n > 0 {
		r.info(stage, "%s: %d instruments refreshed from announced statements", day, n)
	}
	return rest
}

// derive recomputes the derived layer of codes
func (p *Pipeline) derive(ctx context.Context, r *run, codes []string) error {
	total := len(codes)
	var done int64

	return p.forEach(ctx, codes, func(ctx context.Context, code string) {
		res, err := p.deriver.DeriveInstrument(ctx, code)
		switch {
		case err != nil:
			r.failed(code, StageDerive, err)
		case res.Empty():
			r.skipped()
		default:
			r.succeeded()
		}

		step := int(atomic.AddInt64(&done, 1))
		if step%derivedProgressEvery == 0 || step == total {
			r.event(StageDerive, contracts.LevelInfo, step, total, "Processing DWS: %d/%d", step, total)
		}
	})
}

// forEach runs fn once per unit on at most Workers goroutines. Every unit is
// owned by exactly one worker. Unit starts are paced by the shared limiter.
// Cancellation is observed between units only: a started unit runs to
// completion and units not yet started are dropped.
func (p *Pipeline) forEach(ctx context.Context, units []string, fn func(ctx context.Context, unit string)) error {
	if len(units) == 0 {
		return ctx.Err()
	}

	jobs := make(chan string)
	var g errgroup.Group
	for w := 0; w < p.opts.Workers; w++ {
		g.Go(func() error {
			for unit := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fn(p.unit(ctx), unit)
			}
			return nil
		})
	}

	var err error
feed:
	for _, unit := range units {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = p.limiter.Wait(ctx); err != nil {
			break
		}
		select {
		case jobs <- unit:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	_ = g.Wait()

	if err == nil {
		err = ctx.Err()
	}
	return err
}

// unit detaches a unit of work from cancellation
func (p *Pipeline) unit(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// universe resolves the tracked set. An empty set is reported as
// ErrEmptyUniverse after a warning.
func (p *Pipeline) universe(ctx context.Context, r *run) (contracts.Universe, error) {
	universe, err := p.resolver.Resolve(ctx)
	if err != nil {
		return contracts.Universe{}, fmt.Errorf("resolve universe: %w", err)
	}
	if universe.IsEmpty() {
		r.warn(StageUniverse, "Universe is empty; run a stock list sync or add watchlist entries")
		return universe, ErrEmptyUniverse
	}
	r.info(StageUniverse, "Universe resolved: %d instruments", universe.Len())
	return universe, nil
}

func (p *Pipeline) start(mode contracts.SyncMode, progress ProgressFunc) *run {
	r := newRun(mode, progress, p.logger, p.now)
	r.info("", "Starting %s sync", mode)
	return r
}

// finish persists the report and emits the final event. An empty universe
// ends the run normally.
func (p *Pipeline) finish(ctx context.Context, r *run, err error) (*contracts.RunReport, error) {
	if errors.Is(err, ErrEmptyUniverse) {
		err = nil
	}
	report := r.finish(err)

	if p.runs != nil {
		if saveErr := p.runs.SaveRun(context.WithoutCancel(ctx), report); saveErr != nil {
			p.logger.WithError(saveErr).WithField("run_id", report.RunID).Warn("Failed to persist sync run")
		}
	}
	return report, err
}

func categoryError(errs map[contracts.StatementCategory]error) error {
	names := make([]string, 0, len(errs))
	for cat := range errs {
		names = append(names, string(cat))
	}
	sort.Strings(names)
	return fmt.Errorf("financial categories failed: %s: %w", strings.Join(names, ", "), errs[contracts.StatementCategory(names[0])])
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
