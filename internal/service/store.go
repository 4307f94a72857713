// Package service contains the business logic layer.
//
// Services depend on the narrow Store interface rather than the concrete
// repository so tests can substitute in-memory fakes, particularly for
// the concurrency properties of the usage ledger.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/repository"
)

// Store is the data access surface the services need.
// *repository.Queries satisfies it.
type Store interface {
	GetUsableSubscription(ctx context.Context, userID uuid.UUID) (*repository.SubscriptionWithTier, error)
	ListTiers(ctx context.Context) ([]repository.Tier, error)
	GetUsage(ctx context.Context, userID uuid.UUID, month time.Time) (*repository.UsageRow, error)
	AdmitAndIncrementUsage(ctx context.Context, arg repository.AdmitAndIncrementUsageParams) (*repository.AdmitAndIncrementUsageRow, error)
	InsertArtifact(ctx context.Context, arg repository.InsertArtifactParams) (time.Time, error)
	ListRecentArtifacts(ctx context.Context, userID uuid.UUID, limit int32) ([]repository.ArtifactRow, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*repository.ProfileRow, error)
}

var _ Store = (*repository.Queries)(nil)
