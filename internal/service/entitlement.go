// Package service contains the business logic layer.
//
// This file implements entitlement resolution: mapping an account to the
// subscription tier and limits that currently apply to it.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService resolves the entitlement applicable to an account.
type EntitlementService interface {
	// Resolve returns the account's current entitlement. Absence of a
	// subscription is not an error: accounts without one get the default
	// free trial entitlement with status "none".
	Resolve(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error)

	// Tiers returns the plan catalog ordered by price.
	Tiers(ctx context.Context) ([]domain.Tier, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	store  Store
	logger *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(store Store, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the account's current entitlement.
//
// Among subscription rows with status active or trial the newest by
// creation time wins. Duplicate usable subscriptions are a billing-side
// data problem; this only picks a deterministic winner.
func (s *entitlementService) Resolve(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error) {
	const op = "entitlement.resolve"

	sub, err := s.store.GetUsableSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultEntitlement(), nil
		}
		return nil, domain.Unavailable(err, op, "failed to load subscription")
	}

	status := domain.SubscriptionStatus(sub.Status)
	return &domain.Entitlement{
		TierName:           sub.TierName,
		ThumbnailsPerMonth: sub.ThumbnailsPerMonth,
		Status:             status,
		IsSubscribed:       status == domain.SubscriptionStatusActive,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}, nil
}

// Tiers returns the plan catalog ordered by price.
func (s *entitlementService) Tiers(ctx context.Context) ([]domain.Tier, error) {
	const op = "entitlement.tiers"

	rows, err := s.store.ListTiers(ctx)
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to load tier catalog")
	}

	tiers := make([]domain.Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, domain.Tier{
			ID:                 row.ID,
			Name:               row.Name,
			PriceCents:         row.PriceCents,
			ThumbnailsPerMonth: row.ThumbnailsPerMonth,
			CreatedAt:          row.CreatedAt,
		})
	}
	return tiers, nil
}
