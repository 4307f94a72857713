// Package handler contains the HTTP layer for the Thumbgate API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thumbgate/thumbgate/internal/auth"
	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/service"
)

// UsageHandler serves the metered-operation endpoint.
type UsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// recordOperationRequest is the wire format for POST /api/v1/usage.
type recordOperationRequest struct {
	OperationType string          `json:"operationType"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	Style         string          `json:"style,omitempty"`
	AspectRatio   string          `json:"aspectRatio,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// recordOperationResponse is returned on admission.
type recordOperationResponse struct {
	Success bool         `json:"success"`
	Usage   usagePayload `json:"usage"`
}

type usagePayload struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// maxRequestBody bounds inline data: URI payloads.
const maxRequestBody = 32 << 20

// RecordOperation handles POST /api/v1/usage.
func (h *UsageHandler) RecordOperation(w http.ResponseWriter, r *http.Request) {
	const op = "handler.usage.record"

	account := auth.GetAccountFromRequest(r)
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req recordOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid request body"))
		return
	}

	kind, ok := domain.ParseOperationKind(req.OperationType)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid operation type"))
		return
	}
	if !domain.ValidAspectRatio(req.AspectRatio) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid aspect ratio"))
		return
	}

	result, err := h.usage.RecordOperation(r.Context(), domain.RecordOperationParams{
		UserID:      account.UserID,
		Kind:        kind,
		ImageURL:    req.ImageURL,
		Prompt:      req.Prompt,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Metadata:    req.Metadata,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, recordOperationResponse{
		Success: true,
		Usage: usagePayload{
			Current: result.Current,
			Limit:   result.Limit,
		},
	})
}
