// Package audit runs the periodic usage audit sweep.
//
// The artifact append after an admitted operation is best-effort, so a
// counter can run ahead of the number of recorded artifacts. The sweep
// surfaces those gaps through logs and metrics; it never mutates the
// ledger.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thumbgate/thumbgate/internal/domain"
	"github.com/thumbgate/thumbgate/internal/metrics"
	"github.com/thumbgate/thumbgate/internal/repository"
)

// GapLister is the data access surface the auditor needs.
// *repository.Queries satisfies it.
type GapLister interface {
	ListUsageArtifactGaps(ctx context.Context, month time.Time) ([]repository.UsageArtifactGap, error)
}

var _ GapLister = (*repository.Queries)(nil)

// Auditor periodically compares usage counters against recorded artifacts.
type Auditor struct {
	store  GapLister
	config Config
	logger *slog.Logger
	clock  func() time.Time

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Auditor. It must be started with Start() and stopped
// with Stop().
func New(store GapLister, config Config, logger *slog.Logger) (*Auditor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Auditor{
		store:  store,
		config: config,
		logger: logger,
		clock:  time.Now,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the sweep loop. The first sweep runs immediately.
func (a *Auditor) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.run(ctx)
	a.logger.Info("usage auditor started", "interval", a.config.SweepInterval)
}

// Stop signals the sweep loop to stop and waits for it to finish,
// respecting the configured ShutdownTimeout.
func (a *Auditor) Stop() {
	close(a.stopCh)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("usage auditor stopped")
	case <-time.After(a.config.ShutdownTimeout):
		a.logger.Warn("usage auditor shutdown timeout exceeded")
	}
}

func (a *Auditor) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.SweepInterval)
	defer ticker.Stop()

	a.sweep(ctx)

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

// sweep checks the current period for counter/artifact mismatches.
func (a *Auditor) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.config.SweepTimeout)
	defer cancel()

	period := domain.PeriodOf(a.clock())
	gaps, err := a.store.ListUsageArtifactGaps(ctx, period.Start())
	if err != nil {
		a.logger.Error("usage audit sweep failed", "period", period, "error", err)
		return
	}

	metrics.AuditRuns.Inc()
	metrics.AuditGapsFound.Set(float64(len(gaps)))

	if len(gaps) == 0 {
		a.logger.Debug("usage audit sweep clean", "period", period)
		return
	}

	for _, gap := range gaps {
		a.logger.Warn("usage counter ahead of recorded artifacts",
			"user_id", gap.UserID,
			"period", period,
			"counted", gap.Counted,
			"recorded", gap.Recorded,
		)
	}
	a.logger.Warn("usage audit sweep found gaps", "period", period, "count", len(gaps))
}
