package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/email"
)

// =============================================================================
// Interface Definition
// =============================================================================

// LimitNotifier tells an account it has spent its monthly allowance.
// The ledger counter is strictly increasing within a period, so the
// count==limit trigger fires at most once per account per period.
type LimitNotifier interface {
	NotifyLimitReached(ctx context.Context, userID uuid.UUID, limit int64, tierName string) error
}

// =============================================================================
// Implementation
// =============================================================================

type emailLimitNotifier struct {
	store  Store
	email  email.EmailService
	logger *slog.Logger
}

// NewLimitNotifier creates a notifier that emails the account's profile
// address.
func NewLimitNotifier(store Store, emailSvc email.EmailService, logger *slog.Logger) LimitNotifier {
	return &emailLimitNotifier{
		store:  store,
		email:  emailSvc,
		logger: logger,
	}
}

// NotifyLimitReached looks up the account's profile and sends the
// allowance-spent email. Accounts without a synced profile are skipped.
func (n *emailLimitNotifier) NotifyLimitReached(ctx context.Context, userID uuid.UUID, limit int64, tierName string) error {
	profile, err := n.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			n.logger.Warn("skipping limit notification, no profile", "user_id", userID)
			return nil
		}
		return fmt.Errorf("failed to load profile for notification: %w", err)
	}

	name := profile.FullName.String
	return n.email.SendLimitReachedEmail(ctx, profile.Email, name, limit, tierName)
}

// NopNotifier discards notifications. Used when email is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyLimitReached(ctx context.Context, userID uuid.UUID, limit int64, tierName string) error {
	return nil
}

var _ LimitNotifier = NopNotifier{}
