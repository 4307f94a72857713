package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/repository"
)

// recentArtifactCount bounds the artifact list in a snapshot.
const recentArtifactCount = 10

// =============================================================================
// Interface Definition
// =============================================================================

// AccountSnapshot is the combined account view served by GET /api/v1/me.
type AccountSnapshot struct {
	Profile      *domain.Profile // nil when the identity provider has not synced one
	Entitlement  *domain.Entitlement
	Usage        *domain.UsageCounter
	RecentImages []domain.ArtifactRecord
}

// AccountService assembles account snapshots.
type AccountService interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*AccountSnapshot, error)
}

// =============================================================================
// Implementation
// =============================================================================

type accountService struct {
	store        Store
	entitlements EntitlementService
	usage        UsageService
	logger       *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(store Store, entitlements EntitlementService, usage UsageService, logger *slog.Logger) AccountService {
	return &accountService{
		store:        store,
		entitlements: entitlements,
		usage:        usage,
		logger:       logger,
	}
}

// Snapshot returns the account's profile, entitlement, current-period
// usage and recent artifacts. Missing pieces degrade gracefully: no
// profile yields a nil Profile, no usage row yields zero counters.
func (s *accountService) Snapshot(ctx context.Context, userID uuid.UUID) (*AccountSnapshot, error) {
	const op = "account.snapshot"

	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	usage, err := s.usage.CurrentUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	var profile *domain.Profile
	row, err := s.store.GetProfile(ctx, userID)
	switch {
	case err == nil:
		profile = profileFromRow(row)
	case errors.Is(err, sql.ErrNoRows):
		// Profile sync lags behind first authentication.
	default:
		return nil, domain.Unavailable(err, op, "failed to load profile")
	}

	rows, err := s.store.ListRecentArtifacts(ctx, userID, recentArtifactCount)
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to load recent artifacts")
	}

	artifacts := make([]domain.ArtifactRecord, 0, len(rows))
	for i := range rows {
		artifacts = append(artifacts, artifactFromRow(&rows[i]))
	}

	return &AccountSnapshot{
		Profile:      profile,
		Entitlement:  ent,
		Usage:        usage,
		RecentImages: artifacts,
	}, nil
}

func profileFromRow(row *repository.ProfileRow) *domain.Profile {
	return &domain.Profile{
		ID:        row.ID,
		Email:     row.Email,
		FullName:  row.FullName.String,
		AvatarURL: row.AvatarURL.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func artifactFromRow(row *repository.ArtifactRow) domain.ArtifactRecord {
	rec := domain.ArtifactRecord{
		ID:            row.ID,
		UserID:        row.UserID,
		ImageURL:      row.ImageURL,
		PreviewURL:    row.PreviewURL.String,
		Prompt:        row.Prompt.String,
		Style:         row.Style.String,
		AspectRatio:   row.AspectRatio.String,
		OperationKind: domain.OperationKind(row.OperationType),
		CreatedAt:     row.CreatedAt,
	}
	if row.Metadata.Valid {
		rec.Metadata = row.Metadata.RawMessage
	}
	return rec
}
