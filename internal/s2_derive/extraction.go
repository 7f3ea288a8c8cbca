package s2_derive

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
	"gopkg.in/yaml.v3"

	"github.com/wonny/radar/backend/internal/contracts"
)

//go:embed fieldmap.yaml
var defaultFieldMap []byte

// Canonical financial fields
const (
	FieldRevenue           = "revenue"
	FieldNetIncome         = "net_income"
	FieldOperatingCashFlow = "operating_cash_flow"
)

// CanonicalFields is the closed set every industry class must map
var CanonicalFields = []string{FieldRevenue, FieldNetIncome, FieldOperatingCashFlow}

// ClassMapping is one industry class's extraction strategy
type ClassMapping struct {
	Labels []string            `yaml:"labels"`
	Fields map[string][]string `yaml:"fields"`
}

// FieldMap maps canonical fields to vendor fields per industry class
// ⭐ SSOT: industry-aware extraction table
type FieldMap struct {
	CanonicalFields []string                                `yaml:"canonical_fields"`
	Classes         map[contracts.IndustryClass]ClassMapping `yaml:"classes"`
}

// DefaultFieldMap loads the embedded extraction table
func DefaultFieldMap() (*FieldMap, error) {
	return LoadFieldMap(bytes.NewReader(defaultFieldMap))
}

// LoadFieldMap decodes and validates an extraction table. Unknown keys are
// rejected.
func LoadFieldMap(r io.Reader) (*FieldMap, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fm FieldMap
	if err := dec.Decode(&fm); err != nil {
		return nil, fmt.Errorf("decode field map: %w", err)
	}
	if err := fm.Validate(); err != nil {
		return nil, err
	}
	return &fm, nil
}

// Validate checks that every class maps every canonical field and that no
// industry label selects two classes
func (fm *FieldMap) Validate() error {
	want := append([]string(nil), CanonicalFields...)
	got := append([]string(nil), fm.CanonicalFields...)
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return fmt.Errorf("field map: canonical_fields must be %v, got %v", CanonicalFields, fm.CanonicalFields)
	}

	owner := make(map[string]contracts.IndustryClass)
	for _, class := range contracts.IndustryClasses {
		mapping, ok := fm.Classes[class]
		if !ok {
			return fmt.Errorf("field map: class %q is missing", class)
		}
		for _, field := range CanonicalFields {
			if len(mapping.Fields[field]) == 0 {
				return fmt.Errorf("field map: class %q does not map %q", class, field)
			}
		}
		for field := range mapping.Fields {
			if !contains(CanonicalFields, field) {
				return fmt.Errorf("field map: class %q maps unknown field %q", class, field)
			}
		}
		for _, label := range mapping.Labels {
			key := strings.ToLower(label)
			if prev, dup := owner[key]; dup {
				return fmt.Errorf("field map: label %q used by %q and %q", label, prev, class)
			}
			owner[key] = class
		}
	}
	for class := range fm.Classes {
		if !contains(contracts.IndustryClasses, class) {
			return fmt.Errorf("field map: unknown class %q", class)
		}
	}
	return nil
}

// ClassOf selects the industry class whose label occurs in the instrument's
// industry. Unmatched industries are general.
func (fm *FieldMap) ClassOf(industry string) contracts.IndustryClass {
	lower := strings.ToLower(industry)
	for _, class := range contracts.IndustryClasses {
		for _, label := range fm.Classes[class].Labels {
			if label != "" && strings.Contains(lower, strings.ToLower(label)) {
				return class
			}
		}
	}
	return contracts.IndustryGeneral
}

// Extract computes the canonical fields of one merged payload
func (fm *FieldMap) Extract(class contracts.IndustryClass, payload map[string]interface{}) map[string]null.Float {
	mapping, ok := fm.Classes[class]
	if !ok {
		mapping = fm.Classes[contracts.IndustryGeneral]
	}

	out := make(map[string]null.Float, len(CanonicalFields))
	for _, field := range CanonicalFields {
		sources := mapping.Fields[field]
		values := make([]null.Float, 0, len(sources))
		for _, src := range sources {
			values = append(values, payloadFloat(payload, src))
		}
		out[field] = sumPresent(values...)
	}
	return out
}

// payloadFloat reads a numeric vendor field. Missing, null and
// non-numeric values are null.
func payloadFloat(payload map[string]interface{}, key string) null.Float {
	switch v := payload[key].(type) {
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

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
