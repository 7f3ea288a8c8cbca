package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

// UniverseHandler serves the tracked universe and the watchlist
type UniverseHandler struct {
	resolver  contracts.UniverseResolver
	watchlist contracts.WatchlistRepository
	logger    *logger.Logger
}

// NewUniverseHandler creates a new universe handler
func NewUniverseHandler(resolver contracts.UniverseResolver, watchlist contracts.WatchlistRepository, log *logger.Logger) *UniverseHandler {
	return &UniverseHandler{
		resolver:  resolver,
		watchlist: watchlist,
		logger:    log,
	}
}

// GetUniverse returns the resolved universe
// GET /api/universe
func (h *UniverseHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	universe, err := h.resolver.Resolve(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve universe")
		respondError(w, http.StatusInternalServerError, "Failed to resolve universe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": universe.Len(),
		"codes": universe.Codes(),
	})
}

// ListWatchlist returns every watchlist entry
// GET /api/watchlist
func (h *UniverseHandler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.watchlist.ListWatchlist(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve watchlist")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// AddWatchlistRequest represents a watchlist add request
type AddWatchlistRequest struct {
	TSCode    string  `json:"ts_code"`
	GroupName string  `json:"group_name"`
	Weight    float64 `json:"weight"`
}

// AddWatchlist adds or updates one entry
// POST /api/watchlist
func (h *UniverseHandler) AddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req AddWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.TSCode = strings.ToUpper(strings.TrimSpace(req.TSCode))
	if req.TSCode == "" {
		respondError(w, http.StatusBadRequest, "ts_code is required")
		return
	}
	if req.Weight < 0 {
		respondError(w, http.StatusBadRequest, "weight must not be negative")
		return
	}

	entry := contracts.WatchlistEntry{
		TSCode:    req.TSCode,
		GroupName: req.GroupName,
		Weight:    req.Weight,
	}
	if err := h.watchlist.AddWatchlist(r.Context(), entry); err != nil {
		h.logger.WithError(err).WithField("ts_code", req.TSCode).Error("Failed to add watchlist entry")
		respondError(w, http.StatusInternalServerError, "Failed to add watchlist entry")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"ts_code": req.TSCode,
		"message": "Added to watchlist",
	})
}

// RemoveWatchlist removes one entry
// DELETE /api/watchlist/{code}
func (h *UniverseHandler) RemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])

	removed, err := h.watchlist.RemoveWatchlist(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).WithField("ts_code", code).Error("Failed to remove watchlist entry")
		respondError(w, http.StatusInternalServerError, "Failed to remove watchlist entry")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "Not on the watchlist: "+code)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ts_code": code,
		"message": "Removed from watchlist",
	})
}
