package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageCounter holds the per-kind counters for one (account, period) pair.
// Exactly one row exists per pair; it is created lazily on first use and
// mutated only through the ledger's atomic admit-and-increment. Rows are
// never deleted so prior periods stay queryable.
type UsageCounter struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	Period              UsagePeriod
	ThumbnailsGenerated int64
	MagicEditsUsed      int64
	UpscalesUsed        int64
	BackgroundRemovals  int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ZeroUsage returns the zero-valued counter used before any operation has
// been recorded in a period.
func ZeroUsage(userID uuid.UUID, period UsagePeriod) *UsageCounter {
	return &UsageCounter{UserID: userID, Period: period}
}

// CountFor returns the counter value for an operation kind.
func (c *UsageCounter) CountFor(kind OperationKind) int64 {
	switch kind {
	case OperationGenerate:
		return c.ThumbnailsGenerated
	case OperationMagicEdit:
		return c.MagicEditsUsed
	case OperationUpscale:
		return c.UpscalesUsed
	case OperationRemoveBG:
		return c.BackgroundRemovals
	}
	return 0
}

// UsageResult is returned to the caller after a recorded operation.
type UsageResult struct {
	Current int64
	Limit   int64
}
