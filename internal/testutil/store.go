package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
)

type dayKey struct {
	code string
	date time.Time
}

type finKey struct {
	code       string
	end        time.Time
	reportType string
	updateFlag string
	category   contracts.StatementCategory
}

// MemoryStore implements every contracts repository in memory with the same
// upsert-by-natural-key semantics as the SQL tables
type MemoryStore struct {
	mu sync.Mutex

	instruments map[string]contracts.Instrument
	watchlist   map[string]contracts.WatchlistEntry
	bars        map[dayKey]contracts.RawBar
	factors     map[dayKey]contracts.AdjustmentFactor
	basics      map[dayKey]contracts.DailyBasic
	financials  map[finKey]contracts.RawFinancialRecord
	indicators  map[string][]contracts.MarketIndicator
	derivedFin  map[string][]contracts.FinancialRecord
	runs        []contracts.RunReport

	// SaveErrors makes the named save method fail for the given code
	SaveErrors map[string]error
}

var (
	_ contracts.InstrumentRepository   = (*MemoryStore)(nil)
	_ contracts.WatchlistRepository    = (*MemoryStore)(nil)
	_ contracts.RawMarketRepository    = (*MemoryStore)(nil)
	_ contracts.RawFinancialRepository = (*MemoryStore)(nil)
	_ contracts.DerivedRepository      = (*MemoryStore)(nil)
	_ contracts.RunRepository          = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instruments: make(map[string]contracts.Instrument),
		watchlist:   make(map[string]contracts.WatchlistEntry),
		bars:        make(map[dayKey]contracts.RawBar),
		factors:     make(map[dayKey]contracts.AdjustmentFactor),
		basics:      make(map[dayKey]contracts.DailyBasic),
		financials:  make(map[finKey]contracts.RawFinancialRecord),
		indicators:  make(map[string][]contracts.MarketIndicator),
		derivedFin:  make(map[string][]contracts.FinancialRecord),
		SaveErrors:  make(map[string]error),
	}
}

func (s *MemoryStore) UpsertInstruments(ctx context.Context, instruments []contracts.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range instruments {
		in.IsIndexMember = s.instruments[in.TSCode].IsIndexMember
		s.instruments[in.TSCode] = in
	}
	return nil
}

func (s *MemoryStore) SetIndexMembers(ctx context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	for code, in := range s.instruments {
		in.IsIndexMember = set[code]
		s.instruments[code] = in
	}
	return nil
}

func (s *MemoryStore) IndexMemberCodes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []string
	for code, in := range s.instruments {
		if in.IsIndexMember {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *MemoryStore) GetInstrument(ctx context.Context, code string) (*contracts.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.instruments[code]
	if !ok {
		return nil, fmt.Errorf("instrument %s not found", code)
	}
	return &in, nil
}

func (s *MemoryStore) AddWatchlist(ctx context.Context, entry contracts.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.GroupName == "" {
		entry.GroupName = contracts.DefaultWatchlistGroup
	}
	if entry.Weight == 0 {
		entry.Weight = 1
	}
	if existing, ok := s.watchlist[entry.TSCode]; ok {
		entry.AddedAt = existing.AddedAt
	} else if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	s.watchlist[entry.TSCode] = entry
	return nil
}

func (s *MemoryStore) RemoveWatchlist(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watchlist[code]
	delete(s.watchlist, code)
	return ok, nil
}

func (s *MemoryStore) ListWatchlist(ctx context.Context) ([]contracts.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]contracts.WatchlistEntry, 0, len(s.watchlist))
	for _, e := range s.watchlist {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TSCode < entries[j].TSCode })
	return entries, nil
}

func (s *MemoryStore) WatchlistCodes(ctx context.Context) ([]string, error) {
	entries, _ := s.ListWatchlist(ctx)
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.TSCode)
	}
	return codes, nil
}

func (s *MemoryStore) saveErr(method, code string) error {
	if err := s.SaveErrors[method+":"+code]; err != nil {
		return err
	}
	return s.SaveErrors[method]
}

func (s *MemoryStore) SaveBars(ctx context.Context, bars []contracts.RawBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		if err := s.saveErr("SaveBars", b.TSCode); err != nil {
			return err
		}
		s.bars[dayKey{b.TSCode, b.TradeDate}] = b
	}
	return nil
}

func (s *MemoryStore) SaveFactors(ctx context.Context, factors []contracts.AdjustmentFactor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range factors {
		s.factors[dayKey{f.TSCode, f.TradeDate}] = f
	}
	return nil
}

func (s *MemoryStore) SaveDailyBasics(ctx context.Context, basics []contracts.DailyBasic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range basics {
		s.basics[dayKey{b.TSCode, b.TradeDate}] = b
	}
	return nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, bars []contracts.RawBar, factors []contracts.AdjustmentFactor, basics []contracts.DailyBasic) error {
	if err := s.saveErr("SaveSnapshot", ""); err != nil {
		return err
	}
	if err := s.SaveBars(ctx, bars); err != nil {
		return err
	}
	if err := s.SaveFactors(ctx, factors); err != nil {
		return err
	}
	return s.SaveDailyBasics(ctx, basics)
}

func (s *MemoryStore) LatestTradeDate(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for k := range s.bars {
		if k.date.After(latest) {
			latest = k.date
		}
	}
	return latest, !latest.IsZero(), nil
}

func (s *MemoryStore) BarsByCode(ctx context.Context, code string) ([]contracts.RawBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.RawBar
	for k, b := range s.bars {
		if k.code == code {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *MemoryStore) FactorsByCode(ctx context.Context, code string) ([]contracts.AdjustmentFactor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.AdjustmentFactor
	for k, f := range s.factors {
		if k.code == code {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *MemoryStore) DailyBasicsByCode(ctx context.Context, code string) ([]contracts.DailyBasic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.DailyBasic
	for k, b := range s.basics {
		if k.code == code {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *MemoryStore) SaveFinancials(ctx context.Context, records []contracts.RawFinancialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		key := finKey{r.TSCode, r.EndDate, r.ReportType, r.UpdateFlag, r.Category}
		stored, ok := s.financials[key]
		if !ok {
			s.financials[key] = r
			continue
		}
		merged := make(map[string]interface{}, len(stored.Payload)+len(r.Payload))
		for k, v := range stored.Payload {
			merged[k] = v
		}
		for k, v := range r.Payload {
			if v != nil {
				merged[k] = v
			}
		}
		if !r.AnnDate.Valid {
			r.AnnDate = stored.AnnDate
		}
		r.Payload = merged
		s.financials[key] = r
	}
	return nil
}

func (s *MemoryStore) FinancialsByCode(ctx context.Context, code string, reportType string) ([]contracts.RawFinancialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.RawFinancialRecord
	for k, r := range s.financials {
		if k.code == code && (reportType == "" || k.reportType == reportType) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EndDate.Equal(b.EndDate) {
			return a.EndDate.Before(b.EndDate)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.UpdateFlag < b.UpdateFlag
	})
	return out, nil
}

func (s *MemoryStore) ReplaceIndicators(ctx context.Context, code string, rows []contracts.MarketIndicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr("ReplaceIndicators", code); err != nil {
		return err
	}
	s.indicators[code] = append([]contracts.MarketIndicator(nil), rows...)
	return nil
}

func (s *MemoryStore) ReplaceFinancials(ctx context.Context, code string, rows []contracts.FinancialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derivedFin[code] = append([]contracts.FinancialRecord(nil), rows...)
	return nil
}

// Indicators returns the derived indicator rows of code
func (s *MemoryStore) Indicators(code string) []contracts.MarketIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicators[code]
}

// DerivedFinancials returns the standardized statement rows of code
func (s *MemoryStore) DerivedFinancials(code string) []contracts.FinancialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.derivedFin[code]
}

func (s *MemoryStore) SaveRun(ctx context.Context, report *contracts.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *report)
	return nil
}

func (s *MemoryStore) RecentRuns(ctx context.Context, limit int) ([]contracts.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.RunReport, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
