package s2_derive

import (
	"math"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places every derived float keeps
const Precision = 4

// SafeRatio divides num by den. A null operand, a zero denominator or a
// non-finite result yields 0.
func SafeRatio(num, den null.Float) float64 {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return 0
	}
	r := num.Float64 / den.Float64
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return Round(r)
}

// Round rounds half away from zero to Precision places
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(Precision).Float64()
	return f
}

// RoundNull rounds a nullable value, keeping null as null
func RoundNull(v null.Float) null.Float {
	if !v.Valid {
		return v
	}
	if math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return null.Float{}
	}
	return null.FloatFrom(Round(v.Float64))
}

// sumPresent adds the present values. The result is null when none is present.
func sumPresent(values ...null.Float) null.Float {
	var total float64
	found := false
	for _, v := range values {
		if v.Valid {
			total += v.Float64
			found = true
		}
	}
	if !found {
		return null.Float{}
	}
	return null.FloatFrom(total)
}
