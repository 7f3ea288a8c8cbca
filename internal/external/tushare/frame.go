package tushare

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/radar/backend/internal/contracts"
)

// Frame is the column-oriented table the vendor returns
type Frame struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// Len returns the number of rows
func (f Frame) Len() int {
	return len(f.Items)
}

// Rows converts the frame into one map per row. Short items leave the
// missing columns absent rather than null.
func (f Frame) Rows() []Row {
	rows := make([]Row, 0, len(f.Items))
	for _, item := range f.Items {
		row := make(Row, len(f.Fields))
		for i, field := range f.Fields {
			if i < len(item) {
				row[field] = item[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Row is one vendor record keyed by field name
type Row map[string]interface{}

// String returns the field as text, "" when absent or null
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Float returns the field as a nullable number. Numeric strings are parsed;
// NaN and anything else is null.
func (r Row) Float(key string) null.Float {
	switch v := r[key].(type) {
	case float64:
		if v != v {
			return null.Float{}
		}
		return null.FloatFrom(v)
	case int:
		return null.FloatFrom(float64(v))
	case int64:
		return null.FloatFrom(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return null.Float{}
		}
		return null.FloatFrom(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return null.Float{}
		}
		return null.FloatFrom(f)
	default:
		return null.Float{}
	}
}

// FloatOrZero returns the numeric field or 0
func (r Row) FloatOrZero(key string) float64 {
	return r.Float(key).ValueOrZero()
}

// Date parses a YYYYMMDD field
func (r Row) Date(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NullDate parses a YYYYMMDD field into a nullable time
func (r Row) NullDate(key string) null.Time {
	t, ok := r.Date(key)
	if !ok {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

// Payload returns a copy of the row with NaN numbers nulled, suitable for a
// JSONB column
func (r Row) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		if f, ok := v.(float64); ok && f != f {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}
