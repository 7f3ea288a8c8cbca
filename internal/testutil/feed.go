// Package testutil provides in-memory collaborators for package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
)

// FakeFeed is an in-memory contracts.Feed. Rows are filtered by code and
// date the way the vendor does. Errors keyed by ts_code (or by
// "date:YYYYMMDD") are returned from every call that touches that key.
type FakeFeed struct {
	mu sync.Mutex

	Instruments []contracts.Instrument
	Members     []string
	Calendar    []time.Time
	Bars        []contracts.RawBar
	Factors     []contracts.AdjustmentFactor
	Basics      []contracts.DailyBasic
	Statements  []contracts.RawFinancialRecord
	Events      []contracts.DisclosureEvent

	Errors         map[string]error
	CategoryErrors map[contracts.StatementCategory]error
	MembersErr     error

	calls map[string]int
}

var _ contracts.Feed = (*FakeFeed)(nil)

// NewFakeFeed creates an empty feed
func NewFakeFeed() *FakeFeed {
	return &FakeFeed{
		Errors:         make(map[string]error),
		CategoryErrors: make(map[contracts.StatementCategory]error),
		calls:          make(map[string]int),
	}
}

// Calls returns how often method was invoked for key
func (f *FakeFeed) Calls(method, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+":"+key]
}

func (f *FakeFeed) record(method, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method+":"+key]++
	return f.Errors[key]
}

func dateKey(t time.Time) string {
	return "date:" + contracts.FormatDate(t)
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (f *FakeFeed) StockBasic(ctx context.Context) ([]contracts.Instrument, error) {
	if err := f.record("StockBasic", ""); err != nil {
		return nil, err
	}
	return append([]contracts.Instrument(nil), f.Instruments...), nil
}

func (f *FakeFeed) IndexMembers(ctx context.Context, indexCode string, start, end time.Time) ([]string, error) {
	f.record("IndexMembers", indexCode)
	if f.MembersErr != nil {
		return nil, f.MembersErr
	}
	return append([]string(nil), f.Members...), nil
}

func (f *FakeFeed) TradeCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	if err := f.record("TradeCalendar", ""); err != nil {
		return nil, err
	}
	var days []time.Time
	for _, d := range f.Calendar {
		if inRange(d, start, end) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (f *FakeFeed) DailyByDate(ctx context.Context, date time.Time) ([]contracts.RawBar, error) {
	if err := f.record("DailyByDate", dateKey(date)); err != nil {
		return nil, err
	}
	var out []contracts.RawBar
	for _, b := range f.Bars {
		if b.TradeDate.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *FakeFeed) DailyByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.RawBar, error) {
	if err := f.record("DailyByCode", code); err != nil {
		return nil, err
	}
	var out []contracts.RawBar
	for _, b := range f.Bars {
		if b.TSCode == code && inRange(b.TradeDate, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *FakeFeed) AdjFactorByDate(ctx context.Context, date time.Time) ([]contracts.AdjustmentFactor, error) {
	if err := f.record("AdjFactorByDate", dateKey(date)); err != nil {
		return nil, err
	}
	var out []contracts.AdjustmentFactor
	for _, a := range f.Factors {
		if a.TradeDate.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *FakeFeed) AdjFactorByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.AdjustmentFactor, error) {
	if err := f.record("AdjFactorByCode", code); err != nil {
		return nil, err
	}
	var out []contracts.AdjustmentFactor
	for _, a := range f.Factors {
		if a.TSCode == code && inRange(a.TradeDate, start, end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *FakeFeed) DailyBasicByDate(ctx context.Context, date time.Time) ([]contracts.DailyBasic, error) {
	if err := f.record("DailyBasicByDate", dateKey(date)); err != nil {
		return nil, err
	}
	var out []contracts.DailyBasic
	for _, b := range f.Basics {
		if b.TradeDate.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *FakeFeed) DailyBasicByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.DailyBasic, error) {
	if err := f.record("DailyBasicByCode", code); err != nil {
		return nil, err
	}
	var out []contracts.DailyBasic
	for _, b := range f.Basics {
		if b.TSCode == code && inRange(b.TradeDate, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *FakeFeed) Financials(ctx context.Context, category contracts.StatementCategory, code string, start, end time.Time) ([]contracts.RawFinancialRecord, error) {
	if err := f.record("Financials", code); err != nil {
		return nil, err
	}
	if err := f.CategoryErrors[category]; err != nil {
		return nil, err
	}
	var out []contracts.RawFinancialRecord
	for _, r := range f.Statements {
		if r.TSCode == code && r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeFeed) FinancialsByAnnDate(ctx context.Context, category contracts.StatementCategory, annDate time.Time) ([]contracts.RawFinancialRecord, error) {
	if err := f.record("FinancialsByAnnDate", dateKey(annDate)); err != nil {
		return nil, err
	}
	if err := f.CategoryErrors[category]; err != nil {
		return nil, err
	}
	var out []contracts.RawFinancialRecord
	for _, r := range f.Statements {
		if r.Category == category && r.AnnDate.Valid && r.AnnDate.Time.Equal(annDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeFeed) Disclosures(ctx context.Context, actualDate time.Time) ([]contracts.DisclosureEvent, error) {
	if err := f.record("Disclosures", dateKey(actualDate)); err != nil {
		return nil, err
	}
	var out []contracts.DisclosureEvent
	for _, e := range f.Events {
		if e.ActualDate.Equal(actualDate) {
			out = append(out, e)
		}
	}
	return out, nil
}
