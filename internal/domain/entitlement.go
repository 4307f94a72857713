// Package domain contains core business types and interfaces.
//
// This file defines subscription tiers, subscriptions and the resolved
// entitlement applied to an account at a point in time. Tier and
// subscription rows are owned by the external billing integration; this
// service only reads them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusNone     SubscriptionStatus = "none"
)

// Tier is immutable catalog data describing a subscription plan.
type Tier struct {
	ID                 uuid.UUID
	Name               string
	PriceCents         int64
	ThumbnailsPerMonth int64
	CreatedAt          time.Time
}

// Subscription links an account to a tier. At most one row per account
// should be active or trialing; if the billing source violates that, the
// most recently created row wins (see EntitlementService).
type Subscription struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TierID            uuid.UUID
	Status            SubscriptionStatus
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsUsable returns true if the subscription grants entitlement.
func (s *Subscription) IsUsable() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrial
}

// Free trial defaults applied when an account has no usable subscription.
// Absence of a subscription is a modeled state, not a failure.
const (
	FreeTrialTierName  = "Free Trial"
	FreeTrialAllowance = 5
)

// Entitlement is the resolved {tier, status, limits} for an account.
type Entitlement struct {
	TierName           string
	ThumbnailsPerMonth int64
	Status             SubscriptionStatus
	IsSubscribed       bool // Status == active
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// DefaultEntitlement returns the free trial entitlement used when no
// active or trialing subscription exists.
func DefaultEntitlement() *Entitlement {
	return &Entitlement{
		TierName:           FreeTrialTierName,
		ThumbnailsPerMonth: FreeTrialAllowance,
		Status:             SubscriptionStatusNone,
		IsSubscribed:       false,
	}
}

// Profile is the account profile synced by the identity provider.
// Referenced, never owned, by this service.
type Profile struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}
