package handler

import (
	"log/slog"
	"net/http"

	"github.com/thumbgate/thumbgate/internal/service"
)

// TiersHandler serves the public plan catalog.
type TiersHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewTiersHandler creates a new TiersHandler.
func NewTiersHandler(entitlements service.EntitlementService, logger *slog.Logger) *TiersHandler {
	return &TiersHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

type tierPayload struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	PriceCents         int64  `json:"priceCents"`
	ThumbnailsPerMonth int64  `json:"thumbnailsPerMonth"`
}

type tiersResponse struct {
	Tiers []tierPayload `json:"tiers"`
}

// List handles GET /api/v1/tiers.
func (h *TiersHandler) List(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.entitlements.Tiers(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := tiersResponse{Tiers: make([]tierPayload, 0, len(tiers))}
	for _, t := range tiers {
		resp.Tiers = append(resp.Tiers, tierPayload{
			ID:                 t.ID.String(),
			Name:               t.Name,
			PriceCents:         t.PriceCents,
			ThumbnailsPerMonth: t.ThumbnailsPerMonth,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
