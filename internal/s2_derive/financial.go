package s2_derive

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/radar/backend/internal/contracts"
)

// Vendor fields read during reconciliation
const (
	srcDebtToAssets      = "debt_to_assets"
	srcTotalAssets       = "total_assets"
	srcTotalLiab         = "total_liab"
	srcROE               = "roe"
	srcROEDeducted       = "roe_dt"
	srcGrossProfitMargin = "grossprofit_margin"
	srcOtherReceivables  = "oth_receiv"
	srcPrepayment        = "prepayment"
	srcGoodwill          = "goodwill"
	srcParentEquity      = "total_hldr_eqy_exc_min_int"
)

// StandardizeResult carries the standardized rows and the records that were
// dropped for lacking an announcement date
type StandardizeResult struct {
	Records    []contracts.FinancialRecord
	Dropped    int
	Considered int
}

// Standardize merges one instrument's consolidated statements into one
// canonical row per end_date. The output depends only on the input set,
// never on its order.
func Standardize(code string, class contracts.IndustryClass, records []contracts.RawFinancialRecord, fm *FieldMap) StandardizeResult {
	var result StandardizeResult

	groups := make(map[time.Time][]contracts.RawFinancialRecord)
	for _, rec := range records {
		if rec.ReportType != contracts.ReportTypeConsolidated {
			continue
		}
		result.Considered++
		if !rec.AnnDate.Valid {
			result.Dropped++
			continue
		}
		groups[rec.EndDate] = append(groups[rec.EndDate], rec)
	}

	ends := make([]time.Time, 0, len(groups))
	for end := range groups {
		ends = append(ends, end)
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].Before(ends[j]) })

	result.Records = make([]contracts.FinancialRecord, 0, len(ends))
	for _, end := range ends {
		payload, annDate := mergeGroup(groups[end])
		result.Records = append(result.Records, standardizeRow(code, end, annDate, class, payload, fm))
	}
	return result
}

// mergeGroup overlays the payloads of one end_date in category precedence
// then revision order, so later revisions override. Null values never
// erase a reported one.
func mergeGroup(group []contracts.RawFinancialRecord) (map[string]interface{}, time.Time) {
	sorted := append([]contracts.RawFinancialRecord(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if pa, pb := a.Category.Precedence(), b.Category.Precedence(); pa != pb {
			return pa < pb
		}
		if a.UpdateFlag != b.UpdateFlag {
			return a.UpdateFlag < b.UpdateFlag
		}
		return a.AnnDate.Time.Before(b.AnnDate.Time)
	})

	merged := make(map[string]interface{})
	var annDate time.Time
	for _, rec := range sorted {
		for k, v := range rec.Payload {
			if v == nil {
				continue
			}
			merged[k] = v
		}
		if rec.AnnDate.Time.After(annDate) {
			annDate = rec.AnnDate.Time
		}
	}
	return merged, annDate
}

func standardizeRow(code string, end, annDate time.Time, class contracts.IndustryClass, payload map[string]interface{}, fm *FieldMap) contracts.FinancialRecord {
	canonical := fm.Extract(class, payload)

	totalAssets := payloadFloat(payload, srcTotalAssets)
	totalLiab := payloadFloat(payload, srcTotalLiab)

	debt := payloadFloat(payload, srcDebtToAssets)
	if !debt.Valid && totalLiab.Valid && totalAssets.Valid && totalAssets.Float64 != 0 {
		debt = null.FloatFrom(totalLiab.Float64 / totalAssets.Float64 * 100)
	}

	roe := payloadFloat(payload, srcROEDeducted)
	if !roe.Valid {
		roe = payloadFloat(payload, srcROE)
	}

	toxic := sumPresent(payloadFloat(payload, srcOtherReceivables), payloadFloat(payload, srcPrepayment))

	return contracts.FinancialRecord{
		TSCode:            code,
		EndDate:           end,
		AnnDate:           annDate,
		IndustryClass:     class,
		Revenue:           RoundNull(canonical[FieldRevenue]),
		NetIncome:         RoundNull(canonical[FieldNetIncome]),
		OperatingCashFlow: RoundNull(canonical[FieldOperatingCashFlow]),
		TotalAssets:       RoundNull(totalAssets),
		TotalLiab:         RoundNull(totalLiab),
		DebtToAssets:      RoundNull(debt),
		ROE:               RoundNull(roe),
		GrossProfitMargin: RoundNull(payloadFloat(payload, srcGrossProfitMargin)),
		OCFToProfit:       SafeRatio(canonical[FieldOperatingCashFlow], canonical[FieldNetIncome]),
		ToxicAssetRatio:   SafeRatio(toxic, totalAssets),
		GoodwillRatio:     SafeRatio(payloadFloat(payload, srcGoodwill), payloadFloat(payload, srcParentEquity)),
	}
}
