// Package handlers provides HTTP handlers for the investable universe.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/universe"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves read-only catalog lookups
type Handler struct {
	registry *universe.Registry
	log      zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(registry *universe.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log.With().Str("handler", "universe").Logger(),
	}
}

// SectorSummary is one sector with its constituents
type SectorSummary struct {
	Sector string               `json:"sector"`
	Assets []domain.AssetRecord `json:"assets"`
}

// RegisterRoutes registers universe routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/sectors", h.HandleListSectors)
		r.Get("/sectors/{sector}", h.HandleGetSector)
	})
}

// HandleListSectors handles GET /api/universe/sectors
func (h *Handler) HandleListSectors(w http.ResponseWriter, r *http.Request) {
	sectors := h.registry.Sectors()
	out := make([]SectorSummary, 0, len(sectors))
	for _, s := range sectors {
		out = append(out, h.summary(s))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"sectors": out})
}

// HandleGetSector handles GET /api/universe/sectors/{sector}
func (h *Handler) HandleGetSector(w http.ResponseWriter, r *http.Request) {
	sector := chi.URLParam(r, "sector")
	if !h.registry.HasSector(sector) {
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "NOT_FOUND",
				"message": "unknown sector: " + sector,
				"details": map[string]interface{}{"available": h.registry.Sectors()},
			},
		})
		return
	}
	h.writeJSON(w, http.StatusOK, h.summary(sector))
}

func (h *Handler) summary(sector string) SectorSummary {
	tickers := h.registry.TickersInSector(sector)
	assets := make([]domain.AssetRecord, 0, len(tickers))
	for _, t := range tickers {
		if rec, ok := h.registry.Lookup(t); ok {
			assets = append(assets, rec)
		}
	}
	return SectorSummary{Sector: universe.NormalizeSector(sector), Assets: assets}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
