package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/thumbgate/thumbgate/internal/auth"
	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/service"
)

// AccountHandler serves the combined account view.
type AccountHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type snapshotResponse struct {
	Profile      *profilePayload      `json:"profile"`
	Subscription subscriptionPayload  `json:"subscription"`
	Usage        usageCountersPayload `json:"usage"`
	Limits       limitsPayload        `json:"limits"`
	RecentImages []imagePayload       `json:"recentImages"`
}

type profilePayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type subscriptionPayload struct {
	Tier              string     `json:"tier"`
	Status            string     `json:"status"`
	IsSubscribed      bool       `json:"isSubscribed"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
}

type usageCountersPayload struct {
	Month               string `json:"month"`
	ThumbnailsGenerated int64  `json:"thumbnailsGenerated"`
	MagicEdits          int64  `json:"magicEdits"`
	Upscales            int64  `json:"upscales"`
	BackgroundRemovals  int64  `json:"backgroundRemovals"`
}

type limitsPayload struct {
	ThumbnailsPerMonth int64 `json:"thumbnailsPerMonth"`
	Remaining          int64 `json:"remaining"`
}

type imagePayload struct {
	ID            string          `json:"id"`
	ImageURL      string          `json:"imageUrl"`
	PreviewURL    string          `json:"previewUrl,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	Style         string          `json:"style,omitempty"`
	AspectRatio   string          `json:"aspectRatio,omitempty"`
	OperationType string          `json:"operationType"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Snapshot handles GET /api/v1/me.
func (h *AccountHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromRequest(r)
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	snap, err := h.accounts.Snapshot(r.Context(), account.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshotToResponse(snap))
}

func snapshotToResponse(snap *service.AccountSnapshot) snapshotResponse {
	resp := snapshotResponse{
		Subscription: subscriptionPayload{
			Tier:              snap.Entitlement.TierName,
			Status:            string(snap.Entitlement.Status),
			IsSubscribed:      snap.Entitlement.IsSubscribed,
			CancelAtPeriodEnd: snap.Entitlement.CancelAtPeriodEnd,
		},
		Usage: usageCountersPayload{
			Month:               snap.Usage.Period.String(),
			ThumbnailsGenerated: snap.Usage.ThumbnailsGenerated,
			MagicEdits:          snap.Usage.MagicEditsUsed,
			Upscales:            snap.Usage.UpscalesUsed,
			BackgroundRemovals:  snap.Usage.BackgroundRemovals,
		},
		Limits: limitsPayload{
			ThumbnailsPerMonth: snap.Entitlement.ThumbnailsPerMonth,
			Remaining:          remaining(snap.Entitlement.ThumbnailsPerMonth, snap.Usage.ThumbnailsGenerated),
		},
		RecentImages: make([]imagePayload, 0, len(snap.RecentImages)),
	}

	if !snap.Entitlement.CurrentPeriodEnd.IsZero() {
		end := snap.Entitlement.CurrentPeriodEnd
		resp.Subscription.CurrentPeriodEnd = &end
	}

	if snap.Profile != nil {
		resp.Profile = &profilePayload{
			ID:        snap.Profile.ID.String(),
			Email:     snap.Profile.Email,
			FullName:  snap.Profile.FullName,
			AvatarURL: snap.Profile.AvatarURL,
		}
	}

	for _, img := range snap.RecentImages {
		resp.RecentImages = append(resp.RecentImages, imageToPayload(img))
	}

	return resp
}

func imageToPayload(img domain.ArtifactRecord) imagePayload {
	return imagePayload{
		ID:            img.ID.String(),
		ImageURL:      img.ImageURL,
		PreviewURL:    img.PreviewURL,
		Prompt:        img.Prompt,
		Style:         img.Style,
		AspectRatio:   img.AspectRatio,
		OperationType: string(img.OperationKind),
		Metadata:      img.Metadata,
		CreatedAt:     img.CreatedAt,
	}
}

func remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
