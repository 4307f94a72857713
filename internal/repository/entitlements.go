package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionWithTier is an active-or-trial subscription row joined to its
// tier catalog row.
type SubscriptionWithTier struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	TierID             uuid.UUID
	Status             string
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	TierName           string
	PriceCents         int64
	ThumbnailsPerMonth int64
}

const getUsableSubscription = `
SELECT s.id, s.user_id, s.tier_id, s.status,
       s.current_period_end, s.cancel_at_period_end, s.created_at, s.updated_at,
       t.name, t.price_cents, t.thumbnails_per_month
FROM user_subscriptions s
JOIN subscription_tiers t ON t.id = s.tier_id
WHERE s.user_id = $1 AND s.status IN ('active', 'trial')
ORDER BY s.created_at DESC
LIMIT 1
`

// GetUsableSubscription returns the account's newest active or trialing
// subscription, or sql.ErrNoRows when none exists. Uniqueness of usable
// subscriptions per account is owned by the billing integration, not
// enforced here; when duplicates exist the newest row wins.
func (q *Queries) GetUsableSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionWithTier, error) {
	row := q.db.QueryRowContext(ctx, getUsableSubscription, userID)

	var s SubscriptionWithTier
	err := row.Scan(
		&s.ID, &s.UserID, &s.TierID, &s.Status,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
		&s.TierName, &s.PriceCents, &s.ThumbnailsPerMonth,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const listTiers = `
SELECT id, name, price_cents, thumbnails_per_month, created_at
FROM subscription_tiers
ORDER BY price_cents ASC
`

// Tier mirrors a subscription_tiers catalog row.
type Tier struct {
	ID                 uuid.UUID
	Name               string
	PriceCents         int64
	ThumbnailsPerMonth int64
	CreatedAt          time.Time
}

// ListTiers returns the tier catalog ordered by price.
func (q *Queries) ListTiers(ctx context.Context) ([]Tier, error) {
	rows, err := q.db.QueryContext(ctx, listTiers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.PriceCents, &t.ThumbnailsPerMonth, &t.CreatedAt); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
