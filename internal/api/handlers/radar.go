package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/guregu/null/v6"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/selection"
	"github.com/wonny/radar/backend/internal/strategyconfig"
	"github.com/wonny/radar/backend/pkg/logger"
)

// RadarQuerier screens the derived layer
type RadarQuerier interface {
	Query(ctx context.Context, f selection.Filters) (*selection.Result, error)
}

// RadarHandler serves radar queries
// ⭐ SSOT: HTTP radar queries are handled here only
type RadarHandler struct {
	engine  RadarQuerier
	presets *strategyconfig.Config
	logger  *logger.Logger
}

// NewRadarHandler creates a new radar handler
func NewRadarHandler(engine RadarQuerier, presets *strategyconfig.Config, log *logger.Logger) *RadarHandler {
	return &RadarHandler{
		engine:  engine,
		presets: presets,
		logger:  log,
	}
}

// Query runs one radar screen. The named preset (default: the configured
// filters) is the base and every query parameter overrides one field.
// GET /api/radar?preset=&min_roe=&max_pe=&max_pb=&min_mv=&max_debt=&min_ocf=&max_toxic=&max_goodwill=&trend=&pool=&pit=
func (h *RadarHandler) Query(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Query(r.Context(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Radar query failed")
		respondError(w, http.StatusInternalServerError, "Radar query failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

var errUnknownPreset = errors.New("unknown preset")

func (h *RadarHandler) filters(q url.Values) (selection.Filters, error) {
	preset, ok := h.presets.Preset(q.Get("preset"))
	if !ok {
		return selection.Filters{}, fmt.Errorf("%w %q", errUnknownPreset, q.Get("preset"))
	}
	f, err := selection.FiltersFromPreset(preset)
	if err != nil {
		return selection.Filters{}, err
	}

	for param, dst := range map[string]*float64{
		"min_roe":  &f.MinROE,
		"max_pe":   &f.MaxPE,
		"max_pb":   &f.MaxPB,
		"min_mv":   &f.MinMV,
		"max_debt": &f.MaxDebt,
	} {
		if err := parseFloat(q, param, dst); err != nil {
			return selection.Filters{}, err
		}
	}

	for param, dst := range map[string]*null.Float{
		"min_ocf":      &f.MinOCFToProfit,
		"max_toxic":    &f.MaxToxicRatio,
		"max_goodwill": &f.MaxGoodwillRatio,
	} {
		var v float64
		if !q.Has(param) {
			continue
		}
		if err := parseFloat(q, param, &v); err != nil {
			return selection.Filters{}, err
		}
		*dst = null.FloatFrom(v)
	}

	if err := parseBool(q, "trend", &f.TrendUp); err != nil {
		return selection.Filters{}, err
	}
	if err := parseBool(q, "pit", &f.PointInTime); err != nil {
		return selection.Filters{}, err
	}

	if q.Has("pool") {
		pool, ok := contracts.ParsePool(q.Get("pool"))
		if !ok {
			return selection.Filters{}, fmt.Errorf("invalid pool %q (valid: index, watchlist, all)", q.Get("pool"))
		}
		f.Pool = pool
	}

	return f, f.Validate()
}

func parseFloat(q url.Values, param string, dst *float64) error {
	if !q.Has(param) {
		return nil
	}
	v, err := strconv.ParseFloat(q.Get(param), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", param, q.Get(param))
	}
	*dst = v
	return nil
}

func parseBool(q url.Values, param string, dst *bool) error {
	if !q.Has(param) {
		return nil
	}
	v, err := strconv.ParseBool(q.Get(param))
	if err != nil {
		return fmt.Errorf("invalid %s: %q", param, q.Get(param))
	}
	*dst = v
	return nil
}
