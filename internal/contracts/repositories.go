package contracts

import (
	"context"
	"time"
)

// InstrumentRepository stores the instrument master
type InstrumentRepository interface {
	UpsertInstruments(ctx context.Context, instruments []Instrument) error
	SetIndexMembers(ctx context.Context, codes []string) error
	IndexMemberCodes(ctx context.Context) ([]string, error)
	GetInstrument(ctx context.Context, code string) (*Instrument, error)
}

// WatchlistRepository stores user watchlist entries
type WatchlistRepository interface {
	AddWatchlist(ctx context.Context, entry WatchlistEntry) error
	RemoveWatchlist(ctx context.Context, code string) (bool, error)
	ListWatchlist(ctx context.Context) ([]WatchlistEntry, error)
	WatchlistCodes(ctx context.Context) ([]string, error)
}

// RawMarketRepository stores ODS bars, factors and daily valuation rows
type RawMarketRepository interface {
	SaveBars(ctx context.Context, bars []RawBar) error
	SaveFactors(ctx context.Context, factors []AdjustmentFactor) error
	SaveDailyBasics(ctx context.Context, basics []DailyBasic) error
	// SaveSnapshot writes one trade date's rows in a single transaction
	SaveSnapshot(ctx context.Context, bars []RawBar, factors []AdjustmentFactor, basics []DailyBasic) error
	// LatestTradeDate returns the newest persisted bar date, ok=false when empty
	LatestTradeDate(ctx context.Context) (time.Time, bool, error)

	BarsByCode(ctx context.Context, code string) ([]RawBar, error)
	FactorsByCode(ctx context.Context, code string) ([]AdjustmentFactor, error)
	DailyBasicsByCode(ctx context.Context, code string) ([]DailyBasic, error)
}

// RawFinancialRepository stores ODS financial statements with JSONB payloads
type RawFinancialRepository interface {
	SaveFinancials(ctx context.Context, records []RawFinancialRecord) error
	FinancialsByCode(ctx context.Context, code string, reportType string) ([]RawFinancialRecord, error)
}

// DerivedRepository replaces DWS rows one instrument at a time
type DerivedRepository interface {
	ReplaceIndicators(ctx context.Context, code string, rows []MarketIndicator) error
	ReplaceFinancials(ctx context.Context, code string, rows []FinancialRecord) error
}

// RunRepository persists sync run reports
type RunRepository interface {
	SaveRun(ctx context.Context, report *RunReport) error
	RecentRuns(ctx context.Context, limit int) ([]RunReport, error)
}
