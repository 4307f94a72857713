package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/repository"
)

// =============================================================================
// In-memory fake store
// =============================================================================

// fakeStore implements Store with the same admission semantics as the
// conditional upsert: the insert arm is unconditional, the update arm only
// applies while the thumbnail counter is below the limit, and a denial
// mutates nothing.
type fakeStore struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*repository.SubscriptionWithTier
	tiers     []repository.Tier
	usage     map[string]*repository.UsageRow
	artifacts []repository.InsertArtifactParams
	profiles  map[uuid.UUID]*repository.ProfileRow

	admitErrs   []error // consumed one per AdmitAndIncrementUsage call
	artifactErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:     make(map[uuid.UUID]*repository.SubscriptionWithTier),
		usage:    make(map[string]*repository.UsageRow),
		profiles: make(map[uuid.UUID]*repository.ProfileRow),
	}
}

func usageKey(userID uuid.UUID, month time.Time) string {
	return userID.String() + "|" + month.UTC().Format("2006-01-02")
}

func (f *fakeStore) GetUsableSubscription(ctx context.Context, userID uuid.UUID) (*repository.SubscriptionWithTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sub, nil
}

func (f *fakeStore) ListTiers(ctx context.Context) ([]repository.Tier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiers, nil
}

func (f *fakeStore) GetUsage(ctx context.Context, userID uuid.UUID, month time.Time) (*repository.UsageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.usage[usageKey(userID, month)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (f *fakeStore) AdmitAndIncrementUsage(ctx context.Context, arg repository.AdmitAndIncrementUsageParams) (*repository.AdmitAndIncrementUsageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.admitErrs) > 0 {
		err := f.admitErrs[0]
		f.admitErrs = f.admitErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	key := usageKey(arg.UserID, arg.Month)
	row, ok := f.usage[key]
	if !ok {
		row = &repository.UsageRow{
			ID:                     uuid.New(),
			UserID:                 arg.UserID,
			Month:                  arg.Month,
			ThumbnailsGenerated:    arg.ThumbnailsGenerated,
			MagicEditsUsed:         arg.MagicEditsUsed,
			UpscalesUsed:           arg.UpscalesUsed,
			BackgroundRemovalsUsed: arg.BackgroundRemovalsUsed,
		}
		f.usage[key] = row
	} else {
		if !arg.Unlimited && row.ThumbnailsGenerated >= arg.Limit {
			return nil, sql.ErrNoRows
		}
		row.ThumbnailsGenerated += arg.ThumbnailsGenerated
		row.MagicEditsUsed += arg.MagicEditsUsed
		row.UpscalesUsed += arg.UpscalesUsed
		row.BackgroundRemovalsUsed += arg.BackgroundRemovalsUsed
	}

	return &repository.AdmitAndIncrementUsageRow{
		ThumbnailsGenerated:    row.ThumbnailsGenerated,
		MagicEditsUsed:         row.MagicEditsUsed,
		UpscalesUsed:           row.UpscalesUsed,
		BackgroundRemovalsUsed: row.BackgroundRemovalsUsed,
	}, nil
}

func (f *fakeStore) InsertArtifact(ctx context.Context, arg repository.InsertArtifactParams) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifactErr != nil {
		return time.Time{}, f.artifactErr
	}
	f.artifacts = append(f.artifacts, arg)
	return time.Now(), nil
}

func (f *fakeStore) ListRecentArtifacts(ctx context.Context, userID uuid.UUID, limit int32) ([]repository.ArtifactRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []repository.ArtifactRow
	for i := len(f.artifacts) - 1; i >= 0 && len(rows) < int(limit); i-- {
		a := f.artifacts[i]
		if a.UserID != userID {
			continue
		}
		rows = append(rows, repository.ArtifactRow{
			ID:            a.ID,
			UserID:        a.UserID,
			ImageURL:      a.ImageURL,
			PreviewURL:    a.PreviewURL,
			Prompt:        a.Prompt,
			Style:         a.Style,
			AspectRatio:   a.AspectRatio,
			OperationType: a.OperationType,
			Metadata:      a.Metadata,
		})
	}
	return rows, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, userID uuid.UUID) (*repository.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) artifactCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.artifacts)
}

func (f *fakeStore) usageRowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.usage)
}

var _ Store = (*fakeStore)(nil)

// fakeNotifier records limit notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *fakeNotifier) NotifyLimitReached(ctx context.Context, userID uuid.UUID, limit int64, tierName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, limit)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// =============================================================================
// Test helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func subscribe(store *fakeStore, userID uuid.UUID, status string, limit int64) {
	store.subs[userID] = &repository.SubscriptionWithTier{
		ID:                 uuid.New(),
		UserID:             userID,
		TierID:             uuid.New(),
		Status:             status,
		CurrentPeriodEnd:   time.Now().AddDate(0, 1, 0),
		TierName:           "Basic",
		PriceCents:         900,
		ThumbnailsPerMonth: limit,
	}
}

func newTestUsageService(store *fakeStore, clock Clock, notifier LimitNotifier) UsageService {
	logger := testLogger()
	return NewUsageService(UsageServiceParams{
		Store:        store,
		Entitlements: NewEntitlementService(store, logger),
		Notifier:     notifier,
		Logger:       logger,
		Clock:        clock,
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
	})
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

var march15 = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Admission tests
// =============================================================================

func TestRecordOperation_SequentialUntilLimit(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 5)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	for i := int64(1); i <= 5; i++ {
		result, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
			UserID: userID,
			Kind:   domain.OperationGenerate,
		})
		require.NoError(t, err, "operation %d should be admitted", i)
		assert.Equal(t, i, result.Current)
		assert.Equal(t, int64(5), result.Limit)
	}

	// The sixth is rejected and the counter stays put.
	_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.Error(t, err)

	qe, ok := domain.IsQuotaExceeded(err)
	require.True(t, ok, "expected quota exceeded, got %v", err)
	assert.Equal(t, int64(5), qe.Limit)
	assert.Equal(t, int64(5), qe.CurrentUsage)

	row, err := store.GetUsage(context.Background(), userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(5), row.ThumbnailsGenerated)
}

func TestRecordOperation_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit = 20
	const callers = 50

	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", limit)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, rejected := 0, 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
				UserID: userID,
				Kind:   domain.OperationGenerate,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if _, ok := domain.IsQuotaExceeded(err); ok {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
	assert.Equal(t, callers-limit, rejected)

	row, err := store.GetUsage(context.Background(), userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(limit), row.ThumbnailsGenerated)
}

func TestRecordOperation_ConcurrentUnderLimit(t *testing.T) {
	const callers = 30

	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 100)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
				UserID: userID,
				Kind:   domain.OperationGenerate,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	row, err := store.GetUsage(context.Background(), userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(callers), row.ThumbnailsGenerated)
}

func TestRecordOperation_NoSubscription(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	svc := newTestUsageService(store, fixedClock(march15), nil)

	_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Equal(t, "No active subscription found", domain.ErrorMessage(err))

	// Rejection before the ledger: nothing was created or counted.
	assert.Equal(t, 0, store.usageRowCount())
	assert.Equal(t, 0, store.artifactCount())
}

func TestRecordOperation_TrialSubscriptionIsUsable(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "trial", 5)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	result, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Current)
}

func TestRecordOperation_UncappedKindAdmittedAtLimit(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 2)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
		require.NoError(t, err)
	}

	// Thumbnails are spent; an edit is still admitted and tracked.
	result, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationMagicEdit})
	require.NoError(t, err)

	// The reported current is always the thumbnail count.
	assert.Equal(t, int64(2), result.Current)
	assert.Equal(t, int64(2), result.Limit)

	row, err := store.GetUsage(ctx, userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.ThumbnailsGenerated)
	assert.Equal(t, int64(1), row.MagicEditsUsed)
}

func TestRecordOperation_ZeroAllowanceTierRejectedBeforeLedger(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 0)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.Error(t, err)

	qe, ok := domain.IsQuotaExceeded(err)
	require.True(t, ok)
	assert.Equal(t, int64(0), qe.Limit)
	assert.Equal(t, int64(0), qe.CurrentUsage)

	// A zero-allowance rejection must not lazily create a counter row.
	assert.Equal(t, 0, store.usageRowCount())
}

func TestRecordOperation_NewPeriodResetsAllowance(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 1)

	now := march15
	clock := func() time.Time { return now }
	svc := newTestUsageService(store, clock, nil)

	ctx := context.Background()
	_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.NoError(t, err)

	_, err = svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.Error(t, err)

	// Next month the allowance starts fresh; the old row is untouched.
	now = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Current)

	marchRow, err := store.GetUsage(ctx, userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(1), marchRow.ThumbnailsGenerated)
}

// =============================================================================
// Transient error handling
// =============================================================================

func TestRecordOperation_RetriesTransientErrors(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 5)
	store.admitErrs = []error{
		fmt.Errorf("connection reset"),
		fmt.Errorf("connection reset"),
	}
	svc := newTestUsageService(store, fixedClock(march15), nil)

	result, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Current)
}

func TestRecordOperation_FailsClosedWhenLedgerUnavailable(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 5)
	store.admitErrs = []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}
	svc := newTestUsageService(store, fixedClock(march15), nil)

	_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID: userID,
		Kind:   domain.OperationGenerate,
	})
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err), "retries exhausted must reject, got %v", err)
	assert.Equal(t, 0, store.usageRowCount())
}

func TestRecordOperation_DenialIsNotRetried(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 1)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	ctx := context.Background()
	_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.NoError(t, err)

	_, err = svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	_, ok := domain.IsQuotaExceeded(err)
	assert.True(t, ok)

	row, err := store.GetUsage(ctx, userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.ThumbnailsGenerated)
}

// =============================================================================
// Artifact append
// =============================================================================

func TestRecordOperation_AppendsArtifactOnAdmission(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 5)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	_, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID:      userID,
		Kind:        domain.OperationGenerate,
		ImageURL:    "https://cdn.example.com/thumb.png",
		Prompt:      "a red fox",
		Style:       "Anime",
		AspectRatio: "16:9",
	})
	require.NoError(t, err)

	require.Equal(t, 1, store.artifactCount())
	a := store.artifacts[0]
	assert.Equal(t, "https://cdn.example.com/thumb.png", a.ImageURL)
	assert.Equal(t, "a red fox", a.Prompt.String)
	assert.Equal(t, "Anime", a.Style.String)
	assert.Equal(t, "16:9", a.AspectRatio.String)
	assert.Equal(t, "generate", a.OperationType)
}

func TestRecordOperation_ArtifactFailureDoesNotUndoAdmission(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 5)
	store.artifactErr = errors.New("insert failed")
	svc := newTestUsageService(store, fixedClock(march15), nil)

	result, err := svc.RecordOperation(context.Background(), domain.RecordOperationParams{
		UserID:   userID,
		Kind:     domain.OperationGenerate,
		ImageURL: "https://cdn.example.com/thumb.png",
	})
	require.NoError(t, err, "admitted operation must succeed even when the audit record fails")
	assert.Equal(t, int64(1), result.Current)
	assert.Equal(t, 0, store.artifactCount())

	// The counter keeps the admission.
	row, err := store.GetUsage(context.Background(), userID, domain.PeriodOf(march15).Start())
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.ThumbnailsGenerated)
}

func TestRecordOperation_DeniedDoesNotAppendArtifact(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 1)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	ctx := context.Background()
	_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.NoError(t, err)

	_, err = svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.Error(t, err)

	assert.Equal(t, 1, store.artifactCount())
}

// =============================================================================
// Limit notification
// =============================================================================

func TestRecordOperation_NotifiesExactlyOnceAtLimit(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 3)
	notifier := &fakeNotifier{}
	svc := newTestUsageService(store, fixedClock(march15), notifier)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, notifier.count(), "notification fires on the admission that spends the last unit")

	// Rejections after the limit never re-notify.
	_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationGenerate})
	require.Error(t, err)
	assert.Equal(t, 1, notifier.count())

	// Neither do uncapped operations recorded afterwards.
	_, err = svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: domain.OperationUpscale})
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count())
}

// =============================================================================
// Usage peek
// =============================================================================

func TestCurrentUsage_DefaultsToZero(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	svc := newTestUsageService(store, fixedClock(march15), nil)

	usage, err := svc.CurrentUsage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.ThumbnailsGenerated)
	assert.Equal(t, userID, usage.UserID)
	assert.Equal(t, domain.PeriodOf(march15), usage.Period)
}

func TestCurrentUsage_ReflectsRecordedOperations(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	subscribe(store, userID, "active", 10)
	svc := newTestUsageService(store, fixedClock(march15), nil)

	ctx := context.Background()
	for _, kind := range []domain.OperationKind{
		domain.OperationGenerate, domain.OperationGenerate,
		domain.OperationMagicEdit, domain.OperationRemoveBG,
	} {
		_, err := svc.RecordOperation(ctx, domain.RecordOperationParams{UserID: userID, Kind: kind})
		require.NoError(t, err)
	}

	usage, err := svc.CurrentUsage(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.ThumbnailsGenerated)
	assert.Equal(t, int64(1), usage.MagicEditsUsed)
	assert.Equal(t, int64(0), usage.UpscalesUsed)
	assert.Equal(t, int64(1), usage.BackgroundRemovals)
}
