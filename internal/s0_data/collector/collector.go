package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

// Collector pulls vendor data and lands it in the raw layer
// ⭐ SSOT: every raw-layer write from the vendor goes through this package
type Collector struct {
	feed       contracts.Feed
	market     contracts.RawMarketRepository
	financials contracts.RawFinancialRepository
	logger     *logger.Logger
}

// NewCollector creates a new Collector instance
func NewCollector(
	feed contracts.Feed,
	market contracts.RawMarketRepository,
	financials contracts.RawFinancialRepository,
	log *logger.Logger,
) *Collector {
	return &Collector{
		feed:       feed,
		market:     market,
		financials: financials,
		logger:     log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a per-instrument history fetch
type FetchResult struct {
	StockCode      string
	BarCount       int
	FactorCount    int
	BasicCount     int
	FinancialCount map[contracts.StatementCategory]int
	// CategoryErrors holds categories that failed after retries. The other
	// categories were still fetched and saved.
	CategoryErrors map[contracts.StatementCategory]error
}

// Empty reports whether the vendor returned nothing at all
func (r *FetchResult) Empty() bool {
	if r.BarCount > 0 || r.FactorCount > 0 || r.BasicCount > 0 {
		return false
	}
	for _, n := range r.FinancialCount {
		if n > 0 {
			return false
		}
	}
	return true
}

// FetchInstrumentHistory pulls one instrument's market and financial history
// in [start, end] and upserts it. A market feed error aborts the instrument;
// a financial category error is recorded and the next category continues.
func (c *Collector) FetchInstrumentHistory(ctx context.Context, code string, start, end time.Time) (*FetchResult, error) {
	result := &FetchResult{
		StockCode:      code,
		FinancialCount: make(map[contracts.StatementCategory]int),
		CategoryErrors: make(map[contracts.StatementCategory]error),
	}
	log := c.logger.WithField("ts_code", code)

	bars, err := c.feed.DailyByCode(ctx, code, start, end)
	if err != nil {
		return result, fmt.Errorf("fetch daily %s: %w", code, err)
	}
	if err := c.market.SaveBars(ctx, bars); err != nil {
		return result, fmt.Errorf("save daily %s: %w", code, err)
	}
	result.BarCount = len(bars)

	factors, err := c.feed.AdjFactorByCode(ctx, code, start, end)
	if err != nil {
		return result, fmt.Errorf("fetch adj_factor %s: %w", code, err)
	}
	if err := c.market.SaveFactors(ctx, factors); err != nil {
		return result, fmt.Errorf("save adj_factor %s: %w", code, err)
	}
	result.FactorCount = len(factors)

	basics, err := c.feed.DailyBasicByCode(ctx, code, start, end)
	if err != nil {
		return result, fmt.Errorf("fetch daily_basic %s: %w", code, err)
	}
	if err := c.market.SaveDailyBasics(ctx, basics); err != nil {
		return result, fmt.Errorf("save daily_basic %s: %w", code, err)
	}
	result.BasicCount = len(basics)

	for _, category := range contracts.StatementCategories {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records, err := c.feed.Financials(ctx, category, code, start, end)
		if err == nil {
			err = c.financials.SaveFinancials(ctx, records)
		}
		if err != nil {
			log.WithError(err).WithField("category", string(category)).Warn("Financial category fetch failed")
			result.CategoryErrors[category] = err
			continue
		}
		result.FinancialCount[category] = len(records)
	}

	log.WithFields(map[string]interface{}{
		"bars":    result.BarCount,
		"factors": result.FactorCount,
		"basics":  result.BasicCount,
	}).Debug("Fetched instrument history")

	return result, nil
}

// SnapshotResult counts the rows kept for one trade date
type SnapshotResult struct {
	Date       time.Time
	MarketRows int // full-market rows returned by the vendor
	Bars       int
	Factors    int
	Basics     int
}

// IsTradingDay reports whether the vendor returned any bars for the date
func (r *SnapshotResult) IsTradingDay() bool {
	return r.MarketRows > 0
}

// FetchMarketSnapshot pulls the full-market tables of one date with one call
// each, keeps only universe members and writes them in a single transaction.
// A date without bars is a non-trading day and returns an empty result.
func (c *Collector) FetchMarketSnapshot(ctx context.Context, date time.Time, universe contracts.Universe) (*SnapshotResult, error) {
	result := &SnapshotResult{Date: date}
	day := contracts.FormatDate(date)

	bars, err := c.feed.DailyByDate(ctx, date)
	if err != nil {
		return result, fmt.Errorf("fetch daily %s: %w", day, err)
	}
	result.MarketRows = len(bars)
	if len(bars) == 0 {
		c.logger.WithField("date", day).Info("No bars for date, skipping")
		return result, nil
	}

	factors, err := c.feed.AdjFactorByDate(ctx, date)
	if err != nil {
		return result, fmt.Errorf("fetch adj_factor %s: %w", day, err)
	}
	basics, err := c.feed.DailyBasicByDate(ctx, date)
	if err != nil {
		return result, fmt.Errorf("fetch daily_basic %s: %w", day, err)
	}

	bars = filterBy(bars, universe, func(b contracts.RawBar) string { return b.TSCode })
	factors = filterBy(factors, universe, func(f contracts.AdjustmentFactor) string { return f.TSCode })
	basics = filterBy(basics, universe, func(b contracts.DailyBasic) string { return b.TSCode })

	if err := c.market.SaveSnapshot(ctx, bars, factors, basics); err != nil {
		return result, fmt.Errorf("save snapshot %s: %w", day, err)
	}

	result.Bars = len(bars)
	result.Factors = len(factors)
	result.Basics = len(basics)

	c.logger.WithFields(map[string]interface{}{
		"date":        day,
		"market_rows": result.MarketRows,
		"kept":        result.Bars,
	}).Info("Saved market snapshot")

	return result, nil
}

// FetchDisclosures returns the disclosure calendar rows actually published on date
func (c *Collector) FetchDisclosures(ctx context.Context, date time.Time) ([]contracts.DisclosureEvent, error) {
	events, err := c.feed.Disclosures(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch disclosures %s: %w", contracts.FormatDate(date), err)
	}
	return events, nil
}

// AnnouncedResult summarizes the statements landed for one announcement date
type AnnouncedResult struct {
	Date           time.Time
	Records        map[contracts.StatementCategory]int
	Codes          []string // universe members with at least one statement
	CategoryErrors map[contracts.StatementCategory]error
}

// Complete reports whether every category was fetched
func (r *AnnouncedResult) Complete() bool {
	return len(r.CategoryErrors) == 0
}

// FetchAnnouncedFinancials pulls every statement announced on annDate with
// one call per category, keeps universe members and upserts them. A failed
// category is recorded and the next one continues.
func (c *Collector) FetchAnnouncedFinancials(ctx context.Context, annDate time.Time, universe contracts.Universe) (*AnnouncedResult, error) {
	result := &AnnouncedResult{
		Date:           annDate,
		Records:        make(map[contracts.StatementCategory]int),
		CategoryErrors: make(map[contracts.StatementCategory]error),
	}
	day := contracts.FormatDate(annDate)
	seen := make(map[string]struct{})

	for _, category := range contracts.StatementCategories {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records, err := c.feed.FinancialsByAnnDate(ctx, category, annDate)
		if err == nil {
			records = filterBy(records, universe, func(r contracts.RawFinancialRecord) string { return r.TSCode })
			err = c.financials.SaveFinancials(ctx, records)
		}
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"category": string(category),
				"ann_date": day,
			}).Warn("Announced statements fetch failed")
			result.CategoryErrors[category] = err
			continue
		}

		result.Records[category] = len(records)
		for _, rec := range records {
			if _, ok := seen[rec.TSCode]; !ok {
				seen[rec.TSCode] = struct{}{}
				result.Codes = append(result.Codes, rec.TSCode)
			}
		}
	}
	sort.Strings(result.Codes)

	c.logger.WithFields(map[string]interface{}{
		"ann_date":    day,
		"instruments": len(result.Codes),
	}).Info("Saved announced statements")

	return result, nil
}

// TradingDays returns the open exchange days in [from, to]
func (c *Collector) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, nil
	}
	days, err := c.feed.TradeCalendar(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch trade calendar: %w", err)
	}
	return days, nil
}

// filterBy keeps the rows whose code is in the universe (funnel)
func filterBy[T any](rows []T, universe contracts.Universe, code func(T) string) []T {
	kept := make([]T, 0, min(len(rows), universe.Len()))
	for _, row := range rows {
		if universe.Contains(code(row)) {
			kept = append(kept, row)
		}
	}
	return kept
}
