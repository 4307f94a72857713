// Package service contains the business logic layer.
//
// This file implements the usage service: the single admission path every
// metered operation goes through. Check-and-increment happens atomically
// in the ledger; everything after admission (artifact record, limit
// notification) is best-effort and never rolls the counter back.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/metrics"
	"github.com/thumbgate/thumbgate/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService admits and counts metered operations.
type UsageService interface {
	// RecordOperation runs one operation through the admission path:
	// entitlement check, atomic admit-and-increment, artifact append.
	// On rejection it returns *domain.QuotaExceededError or an EPAYMENT
	// error and performs no counter mutation.
	RecordOperation(ctx context.Context, params domain.RecordOperationParams) (*domain.UsageResult, error)

	// CurrentUsage returns the counters for the account's current period
	// without mutating anything. Accounts with no recorded operations get
	// the zero counter.
	CurrentUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error)
}

// Clock returns the current time. Injected so period-boundary behavior is
// testable.
type Clock func() time.Time

// =============================================================================
// Implementation
// =============================================================================

const (
	defaultMaxRetries = 2
	defaultRetryDelay = 50 * time.Millisecond
)

type usageService struct {
	store        Store
	entitlements EntitlementService
	archiver     ArtifactArchiver
	notifier     LimitNotifier
	logger       *slog.Logger
	clock        Clock
	maxRetries   int
	retryDelay   time.Duration
}

// UsageServiceParams configures a UsageService.
type UsageServiceParams struct {
	Store        Store
	Entitlements EntitlementService
	Archiver     ArtifactArchiver // optional; image URLs pass through when nil
	Notifier     LimitNotifier    // optional
	Logger       *slog.Logger
	Clock        Clock         // defaults to time.Now
	MaxRetries   int           // ledger retries on transient errors, default 2
	RetryDelay   time.Duration // base delay between retries, default 50ms
}

// NewUsageService creates a new UsageService.
func NewUsageService(p UsageServiceParams) UsageService {
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Notifier == nil {
		p.Notifier = NopNotifier{}
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = defaultRetryDelay
	}
	return &usageService{
		store:        p.Store,
		entitlements: p.Entitlements,
		archiver:     p.Archiver,
		notifier:     p.Notifier,
		logger:       p.Logger,
		clock:        p.Clock,
		maxRetries:   p.MaxRetries,
		retryDelay:   p.RetryDelay,
	}
}

// RecordOperation admits and counts one metered operation.
func (s *usageService) RecordOperation(ctx context.Context, params domain.RecordOperationParams) (*domain.UsageResult, error) {
	const op = "usage.record"

	policy := domain.PolicyFor(params.Kind)
	period := domain.PeriodOf(s.clock())

	ent, err := s.entitlements.Resolve(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	if policy.RequiresSubscription && ent.Status == domain.SubscriptionStatusNone {
		metrics.OperationsRejected.WithLabelValues(string(params.Kind), "no_subscription").Inc()
		return nil, domain.NoActiveSubscription(op)
	}

	limit := ent.ThumbnailsPerMonth

	// A zero-allowance tier must be rejected before touching the ledger:
	// the upsert's INSERT arm is unconditional, the limit check only
	// guards the increment of an existing row.
	if policy.Capped && limit <= 0 {
		metrics.OperationsRejected.WithLabelValues(string(params.Kind), "quota_exceeded").Inc()
		used, err := s.peekCount(ctx, params.UserID, period, params.Kind)
		if err != nil {
			return nil, err
		}
		return nil, domain.QuotaExceeded(op, params.Kind, used, limit)
	}

	row, err := s.admitWithRetry(ctx, repository.AdmitAndIncrementUsageParams{
		UserID:                 params.UserID,
		Month:                  period.Start(),
		ThumbnailsGenerated:    delta(params.Kind, domain.OperationGenerate),
		MagicEditsUsed:         delta(params.Kind, domain.OperationMagicEdit),
		UpscalesUsed:           delta(params.Kind, domain.OperationUpscale),
		BackgroundRemovalsUsed: delta(params.Kind, domain.OperationRemoveBG),
		Unlimited:              !policy.Capped,
		Limit:                  limit,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.OperationsRejected.WithLabelValues(string(params.Kind), "quota_exceeded").Inc()
			used, peekErr := s.peekCount(ctx, params.UserID, period, params.Kind)
			if peekErr != nil {
				used = limit
			}
			return nil, domain.QuotaExceeded(op, params.Kind, used, limit)
		}
		return nil, domain.Unavailable(err, op, "failed to record usage")
	}

	metrics.OperationsAdmitted.WithLabelValues(string(params.Kind)).Inc()

	s.appendArtifact(ctx, params)

	if policy.Capped && row.ThumbnailsGenerated == limit {
		if err := s.notifier.NotifyLimitReached(ctx, params.UserID, limit, ent.TierName); err != nil {
			s.logger.Warn("failed to send limit notification", "user_id", params.UserID, "error", err)
		}
	}

	// The reported usage is always the thumbnail count, regardless of which
	// kind was recorded; it is the only capped counter.
	return &domain.UsageResult{
		Current: row.ThumbnailsGenerated,
		Limit:   limit,
	}, nil
}

// CurrentUsage returns the account's counters for the current period.
func (s *usageService) CurrentUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error) {
	const op = "usage.current"

	period := domain.PeriodOf(s.clock())
	row, err := s.store.GetUsage(ctx, userID, period.Start())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ZeroUsage(userID, period), nil
		}
		return nil, domain.Unavailable(err, op, "failed to load usage")
	}
	return usageFromRow(row, period), nil
}

// admitWithRetry calls the ledger, retrying transient storage errors a
// bounded number of times. A denial (sql.ErrNoRows) is a definitive answer
// and is never retried; retries exhausted means rejection, not admission.
func (s *usageService) admitWithRetry(ctx context.Context, arg repository.AdmitAndIncrementUsageParams) (*repository.AdmitAndIncrementUsageRow, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.LedgerRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			}
		}

		row, err := s.store.AdmitAndIncrementUsage(ctx, arg)
		if err == nil {
			return row, nil
		}
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("ledger call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// appendArtifact archives the image and writes the audit record. Both are
// best-effort: the operation was already admitted and counted, and the
// counter is never rolled back. Failures are logged and surfaced through
// metrics so the audit sweep can find the gap.
func (s *usageService) appendArtifact(ctx context.Context, params domain.RecordOperationParams) {
	imageURL := params.ImageURL
	previewURL := ""

	if s.archiver != nil && imageURL != "" {
		archived, err := s.archiver.Archive(ctx, params.UserID, imageURL)
		if err != nil {
			s.logger.Warn("failed to archive artifact image", "user_id", params.UserID, "error", err)
		} else {
			imageURL = archived.ImageURL
			previewURL = archived.PreviewURL
		}
	}

	_, err := s.store.InsertArtifact(ctx, repository.InsertArtifactParams{
		ID:            uuid.New(),
		UserID:        params.UserID,
		ImageURL:      imageURL,
		PreviewURL:    nullString(previewURL),
		Prompt:        nullString(params.Prompt),
		Style:         nullString(params.Style),
		AspectRatio:   nullString(params.AspectRatio),
		OperationType: string(params.Kind),
		Metadata:      nullRawMessage(params.Metadata),
	})
	if err != nil {
		metrics.ArtifactAppendFailures.Inc()
		s.logger.Error("failed to append artifact record",
			"user_id", params.UserID,
			"operation", params.Kind,
			"error", err,
		)
	}
}

// peekCount reads the current count for a kind without mutating the
// ledger. An absent row counts as zero.
func (s *usageService) peekCount(ctx context.Context, userID uuid.UUID, period domain.UsagePeriod, kind domain.OperationKind) (int64, error) {
	const op = "usage.peek"

	row, err := s.store.GetUsage(ctx, userID, period.Start())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.Unavailable(err, op, "failed to load usage")
	}
	return usageFromRow(row, period).CountFor(kind), nil
}

func delta(kind, want domain.OperationKind) int64 {
	if kind == want {
		return 1
	}
	return 0
}

func usageFromRow(row *repository.UsageRow, period domain.UsagePeriod) *domain.UsageCounter {
	return &domain.UsageCounter{
		ID:                  row.ID,
		UserID:              row.UserID,
		Period:              period,
		ThumbnailsGenerated: row.ThumbnailsGenerated,
		MagicEditsUsed:      row.MagicEditsUsed,
		UpscalesUsed:        row.UpscalesUsed,
		BackgroundRemovals:  row.BackgroundRemovalsUsed,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRawMessage(m json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: m, Valid: len(m) > 0}
}
