package s2_derive

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

var (
	// ErrNoBars means the instrument has no raw bars yet
	ErrNoBars = errors.New("no raw bars")

	// ErrNoFactors means no adjustment factor covers the latest bar
	ErrNoFactors = errors.New("no adjustment factors")

	// ErrNoFinancials means the instrument has no consolidated statements
	ErrNoFinancials = errors.New("no consolidated statements")
)

// IsSkip reports whether err means "nothing to derive" rather than a failure
func IsSkip(err error) bool {
	return errors.Is(err, ErrNoBars) || errors.Is(err, ErrNoFactors) || errors.Is(err, ErrNoFinancials)
}

// Engine recomputes the derived layer one instrument at a time
// ⭐ SSOT: DWS rows are produced only here
type Engine struct {
	market      contracts.RawMarketRepository
	financials  contracts.RawFinancialRepository
	instruments contracts.InstrumentRepository
	derived     contracts.DerivedRepository
	fieldMap    *FieldMap
	logger      *logger.Logger
}

// NewEngine creates a new derivation engine
func NewEngine(
	market contracts.RawMarketRepository,
	financials contracts.RawFinancialRepository,
	instruments contracts.InstrumentRepository,
	derived contracts.DerivedRepository,
	fieldMap *FieldMap,
	log *logger.Logger,
) *Engine {
	return &Engine{
		market:      market,
		financials:  financials,
		instruments: instruments,
		derived:     derived,
		fieldMap:    fieldMap,
		logger:      log.WithField("module", "s2_derive"),
	}
}

// DerivePrice replaces code's indicator rows from its raw history and
// returns the number of rows written
func (e *Engine) DerivePrice(ctx context.Context, code string) (int, error) {
	bars, err := e.market.BarsByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("load bars %s: %w", code, err)
	}
	factors, err := e.market.FactorsByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("load factors %s: %w", code, err)
	}
	basics, err := e.market.DailyBasicsByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("load daily basics %s: %w", code, err)
	}

	rows, err := ComputeIndicators(bars, factors, basics)
	if err != nil {
		return 0, fmt.Errorf("derive price %s: %w", code, err)
	}

	if err := e.derived.ReplaceIndicators(ctx, code, rows); err != nil {
		return 0, fmt.Errorf("save indicators %s: %w", code, err)
	}
	return len(rows), nil
}

// DeriveFinancial replaces code's standardized statement rows and returns
// the number of rows written
func (e *Engine) DeriveFinancial(ctx context.Context, code string) (int, error) {
	records, err := e.financials.FinancialsByCode(ctx, code, contracts.ReportTypeConsolidated)
	if err != nil {
		return 0, fmt.Errorf("load financials %s: %w", code, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("derive financial %s: %w", code, ErrNoFinancials)
	}

	class := contracts.IndustryGeneral
	if in, err := e.instruments.GetInstrument(ctx, code); err == nil {
		class = e.fieldMap.ClassOf(in.Industry)
	} else {
		e.logger.WithError(err).WithField("ts_code", code).Debug("Instrument unknown, using general extraction")
	}

	result := Standardize(code, class, records, e.fieldMap)
	if result.Dropped > 0 {
		e.logger.WithFields(map[string]interface{}{
			"ts_code": code,
			"dropped": result.Dropped,
		}).Warn("Dropped statements without ann_date")
	}

	if err := e.derived.ReplaceFinancials(ctx, code, result.Records); err != nil {
		return 0, fmt.Errorf("save financials %s: %w", code, err)
	}
	return len(result.Records), nil
}

// DeriveResult counts the rows one instrument produced
type DeriveResult struct {
	Code       string `json:"ts_code"`
	Indicators int    `json:"indicators"`
	Financials int    `json:"financials"`
}

// Empty reports whether neither layer had anything to derive
func (r DeriveResult) Empty() bool {
	return r.Indicators == 0 && r.Financials == 0
}

// DeriveInstrument runs both derivations for code. A layer with nothing to
// derive is not an error; the first real failure is returned.
func (e *Engine) DeriveInstrument(ctx context.Context, code string) (DeriveResult, error) {
	result := DeriveResult{Code: code}

	n, err := e.DerivePrice(ctx, code)
	if err != nil && !IsSkip(err) {
		return result, err
	}
	result.Indicators = n

	n, err = e.DeriveFinancial(ctx, code)
	if err != nil && !IsSkip(err) {
		return result, err
	}
	result.Financials = n

	return result, nil
}
