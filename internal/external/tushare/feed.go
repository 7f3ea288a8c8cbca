package tushare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
)

const (
	fieldsStockBasic = "ts_code,symbol,name,area,industry,market,list_date"
	fieldsDaily      = "ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount"
	fieldsAdjFactor  = "ts_code,trade_date,adj_factor"
	fieldsDailyBasic = "ts_code,trade_date,pe_ttm,pb,total_mv,turnover_rate"
	fieldsDisclosure = "ts_code,ann_date,end_date,pre_date,actual_date"
)

// statementAPIs maps each category to its vendor API name
var statementAPIs = map[contracts.StatementCategory]string{
	contracts.CategoryIncome:    "income",
	contracts.CategoryBalance:   "balancesheet",
	contracts.CategoryCashflow:  "cashflow",
	contracts.CategoryIndicator: "fina_indicator",
}

// StatementAPI returns the vendor API name of a statement category
func StatementAPI(category contracts.StatementCategory) (string, error) {
	api, ok := statementAPIs[category]
	if !ok {
		return "", fmt.Errorf("unknown statement category %q", category)
	}
	return api, nil
}

var _ contracts.Feed = (*Client)(nil)

func dateParam(t time.Time) string {
	return contracts.FormatDate(t)
}

// StockBasic returns every listed instrument
func (c *Client) StockBasic(ctx context.Context) ([]contracts.Instrument, error) {
	frame, err := c.Query(ctx, "stock_basic", map[string]interface{}{
		"exchange":    "",
		"list_status": "L",
	}, fieldsStockBasic)
	if err != nil {
		return nil, err
	}

	instruments := make([]contracts.Instrument, 0, frame.Len())
	for _, row := range frame.Rows() {
		code := row.String("ts_code")
		if code == "" {
			continue
		}
		instruments = append(instruments, contracts.Instrument{
			TSCode:   code,
			Symbol:   row.String("symbol"),
			Name:     row.String("name"),
			Area:     row.String("area"),
			Industry: row.String("industry"),
			Market:   row.String("market"),
			ListDate: row.NullDate("list_date"),
		})
	}
	return instruments, nil
}

// IndexMembers returns the constituents on the latest trade date inside
// [start, end]. An index without weights in the window yields nil.
func (c *Client) IndexMembers(ctx context.Context, indexCode string, start, end time.Time) ([]string, error) {
	frame, err := c.Query(ctx, "index_weight", map[string]interface{}{
		"index_code": indexCode,
		"start_date": dateParam(start),
		"end_date":   dateParam(end),
	}, "index_code,con_code,trade_date,weight")
	if err != nil {
		return nil, err
	}

	latest := ""
	rows := frame.Rows()
	for _, row := range rows {
		if d := row.String("trade_date"); d > latest {
			latest = d
		}
	}
	if latest == "" {
		return nil, nil
	}

	members := make([]string, 0, 800)
	for _, row := range rows {
		if row.String("trade_date") == latest {
			if code := row.String("con_code"); code != "" {
				members = append(members, code)
			}
		}
	}
	sort.Strings(members)
	return members, nil
}

// TradeCalendar returns the open SSE trading days in [start, end], ascending
func (c *Client) TradeCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	frame, err := c.Query(ctx, "trade_cal", map[string]interface{}{
		"exchange":   "SSE",
		"start_date": dateParam(start),
		"end_date":   dateParam(end),
		"is_open":    "1",
	}, "cal_date,is_open")
	if err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, frame.Len())
	for _, row := range frame.Rows() {
		if row.String("is_open") != "1" {
			continue
		}
		if d, ok := row.Date("cal_date"); ok {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// DailyByDate returns the full-market bars of one trade date
func (c *Client) DailyByDate(ctx context.Context, date time.Time) ([]contracts.RawBar, error) {
	frame, err := c.Query(ctx, "daily", map[string]interface{}{"trade_date": dateParam(date)}, fieldsDaily)
	if err != nil {
		return nil, err
	}
	return barsFromFrame(frame), nil
}

// DailyByCode returns one instrument's bars in [start, end]
func (c *Client) DailyByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.RawBar, error) {
	frame, err := c.Query(ctx, "daily", rangeParams(code, start, end), fieldsDaily)
	if err != nil {
		return nil, err
	}
	return barsFromFrame(frame), nil
}

// AdjFactorByDate returns the full-market adjustment factors of one trade date
func (c *Client) AdjFactorByDate(ctx context.Context, date time.Time) ([]contracts.AdjustmentFactor, error) {
	frame, err := c.Query(ctx, "adj_factor", map[string]interface{}{"trade_date": dateParam(date)}, fieldsAdjFactor)
	if err != nil {
		return nil, err
	}
	return factorsFromFrame(frame), nil
}

// AdjFactorByCode returns one instrument's adjustment factors in [start, end]
func (c *Client) AdjFactorByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.AdjustmentFactor, error) {
	frame, err := c.Query(ctx, "adj_factor", rangeParams(code, start, end), fieldsAdjFactor)
	if err != nil {
		return nil, err
	}
	return factorsFromFrame(frame), nil
}

// DailyBasicByDate returns the full-market valuation rows of one trade date
func (c *Client) DailyBasicByDate(ctx context.Context, date time.Time) ([]contracts.DailyBasic, error) {
	frame, err := c.Query(ctx, "daily_basic", map[string]interface{}{"trade_date": dateParam(date)}, fieldsDailyBasic)
	if err != nil {
		return nil, err
	}
	return basicsFromFrame(frame), nil
}

// DailyBasicByCode returns one instrument's valuation rows in [start, end]
func (c *Client) DailyBasicByCode(ctx context.Context, code string, start, end time.Time) ([]contracts.DailyBasic, error) {
	frame, err := c.Query(ctx, "daily_basic", rangeParams(code, start, end), fieldsDailyBasic)
	if err != nil {
		return nil, err
	}
	return basicsFromFrame(frame), nil
}

// Financials returns one statement category for one instrument, requesting
// every vendor field so the raw payload is complete
func (c *Client) Financials(ctx context.Context, category contracts.StatementCategory, code string, start, end time.Time) ([]contracts.RawFinancialRecord, error) {
	api, err := StatementAPI(category)
	if err != nil {
		return nil, err
	}

	frame, err := c.Query(ctx, api, rangeParams(code, start, end))
	if err != nil {
		return nil, err
	}
	return financialsFromFrame(frame, category), nil
}

// FinancialsByAnnDate returns one statement category for every instrument
// that announced on annDate
func (c *Client) FinancialsByAnnDate(ctx context.Context, category contracts.StatementCategory, annDate time.Time) ([]contracts.RawFinancialRecord, error) {
	api, err := StatementAPI(category)
	if err != nil {
		return nil, err
	}

	frame, err := c.Query(ctx, api+"_vip", map[string]interface{}{"ann_date": dateParam(annDate)})
	if err != nil {
		return nil, err
	}
	return financialsFromFrame(frame, category), nil
}

// Disclosures returns the disclosure calendar rows actually published on date
func (c *Client) Disclosures(ctx context.Context, actualDate time.Time) ([]contracts.DisclosureEvent, error) {
	frame, err := c.Query(ctx, "disclosure_date", map[string]interface{}{
		"actual_date": dateParam(actualDate),
	}, fieldsDisclosure)
	if err != nil {
		return nil, err
	}

	events := make([]contracts.DisclosureEvent, 0, frame.Len())
	for _, row := range frame.Rows() {
		actual, ok := row.Date("actual_date")
		code := row.String("ts_code")
		if !ok || code == "" {
			continue
		}
		end, _ := row.Date("end_date")
		events = append(events, contracts.DisclosureEvent{
			TSCode:     code,
			EndDate:    end,
			ActualDate: actual,
		})
	}
	return events, nil
}

func rangeParams(code string, start, end time.Time) map[string]interface{} {
	return map[string]interface{}{
		"ts_code":    code,
		"start_date": dateParam(start),
		"end_date":   dateParam(end),
	}
}

func barsFromFrame(frame Frame) []contracts.RawBar {
	bars := make([]contracts.RawBar, 0, frame.Len())
	for _, row := range frame.Rows() {
		date, ok := row.Date("trade_date")
		code := row.String("ts_code")
		if !ok || code == "" {
			continue
		}
		bars = append(bars, contracts.RawBar{
			TSCode:    code,
			TradeDate: date,
			Open:      row.FloatOrZero("open"),
			High:      row.FloatOrZero("high"),
			Low:       row.FloatOrZero("low"),
			Close:     row.FloatOrZero("close"),
			PreClose:  row.FloatOrZero("pre_close"),
			Change:    row.FloatOrZero("change"),
			PctChg:    row.FloatOrZero("pct_chg"),
			Vol:       row.FloatOrZero("vol"),
			Amount:    row.FloatOrZero("amount"),
		})
	}
	return bars
}

func factorsFromFrame(frame Frame) []contracts.AdjustmentFactor {
	factors := make([]contracts.AdjustmentFactor, 0, frame.Len())
	for _, row := range frame.Rows() {
		date, ok := row.Date("trade_date")
		factor := row.Float("adj_factor")
		code := row.String("ts_code")
		if !ok || code == "" || !factor.Valid {
			continue
		}
		factors = append(factors, contracts.AdjustmentFactor{
			TSCode:    code,
			TradeDate: date,
			Factor:    factor.Float64,
		})
	}
	return factors
}

func basicsFromFrame(frame Frame) []contracts.DailyBasic {
	basics := make([]contracts.DailyBasic, 0, frame.Len())
	for _, row := range frame.Rows() {
		date, ok := row.Date("trade_date")
		code := row.String("ts_code")
		if !ok || code == "" {
			continue
		}
		basics = append(basics, contracts.DailyBasic{
			TSCode:       code,
			TradeDate:    date,
			PETTM:        row.Float("pe_ttm"),
			PB:           row.Float("pb"),
			TotalMV:      row.Float("total_mv"),
			TurnoverRate: row.Float("turnover_rate"),
		})
	}
	return basics
}

// financialsFromFrame keeps the whole vendor row as payload. fina_indicator
// publishes neither report_type nor update_flag, so they default to a
// consolidated original filing.
func financialsFromFrame(frame Frame, category contracts.StatementCategory) []contracts.RawFinancialRecord {
	records := make([]contracts.RawFinancialRecord, 0, frame.Len())
	for _, row := range frame.Rows() {
		end, ok := row.Date("end_date")
		code := row.String("ts_code")
		if !ok || code == "" {
			continue
		}

		reportType := row.String("report_type")
		if reportType == "" {
			reportType = contracts.ReportTypeConsolidated
		}
		updateFlag := row.String("update_flag")
		if updateFlag == "" {
			updateFlag = "0"
		}

		records = append(records, contracts.RawFinancialRecord{
			TSCode:     code,
			EndDate:    end,
			ReportType: reportType,
			UpdateFlag: updateFlag,
			Category:   category,
			AnnDate:    row.NullDate("ann_date"),
			Payload:    row.Payload(),
		})
	}
	return records
}
