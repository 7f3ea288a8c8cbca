package selection

import (
	"strings"

	"github.com/wonny/radar/backend/internal/strategyconfig"
)

// NeutralSignal labels a row no rule matched
const NeutralSignal = "neutral"

// signalSeparator joins matched labels
const signalSeparator = " | "

// Signal evaluates rules in order against row and joins the matched labels
func Signal(row *Row, rules []strategyconfig.SignalRule) string {
	var labels []string
	for _, rule := range rules {
		v, ok := metric(row, rule.Metric)
		if ok && strategyconfig.Compare(rule.Op, v, rule.Threshold) {
			labels = append(labels, rule.Label)
		}
	}
	if len(labels) == 0 {
		return NeutralSignal
	}
	return strings.Join(labels, signalSeparator)
}

func metric(row *Row, name string) (float64, bool) {
	switch name {
	case strategyconfig.MetricROE:
		return row.ROE, true
	case strategyconfig.MetricPE:
		return row.PETTM, true
	case strategyconfig.MetricPB:
		return row.PB, true
	case strategyconfig.MetricTotalMV:
		return row.TotalMV, true
	case strategyconfig.MetricDebtToAssets:
		return row.DebtToAssets, true
	case strategyconfig.MetricOCFToProfit:
		return row.OCFToProfit, true
	case strategyconfig.MetricToxicAssetRatio:
		return row.ToxicAssetRatio, true
	case strategyconfig.MetricGoodwillRatio:
		return row.GoodwillRatio, true
	case strategyconfig.MetricPctChg:
		return row.PctChg.Float64, row.PctChg.Valid
	}
	return 0, false
}
