package contracts

import (
	"context"
	"time"
)

// Feed is the vendor market-data collaborator
// ⭐ SSOT: every pull from the vendor goes through this interface
type Feed interface {
	StockBasic(ctx context.Context) ([]Instrument, error)
	IndexMembers(ctx context.Context, indexCode string, start, end time.Time) ([]string, error)
	TradeCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error)

	DailyByDate(ctx context.Context, date time.Time) ([]RawBar, error)
	DailyByCode(ctx context.Context, code string, start, end time.Time) ([]RawBar, error)
	AdjFactorByDate(ctx context.Context, date time.Time) ([]AdjustmentFactor, error)
	AdjFactorByCode(ctx context.Context, code string, start, end time.Time) ([]AdjustmentFactor, error)
	DailyBasicByDate(ctx context.Context, date time.Time) ([]DailyBasic, error)
	DailyBasicByCode(ctx context.Context, code string, start, end time.Time) ([]DailyBasic, error)

	Financials(ctx context.Context, category StatementCategory, code string, start, end time.Time) ([]RawFinancialRecord, error)
	FinancialsByAnnDate(ctx context.Context, category StatementCategory, annDate time.Time) ([]RawFinancialRecord, error)
	Disclosures(ctx context.Context, actualDate time.Time) ([]DisclosureEvent, error)
}

// UniverseResolver computes the tracked instrument set (S1)
type UniverseResolver interface {
	Resolve(ctx context.Context) (Universe, error)
}
