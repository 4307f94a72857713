package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageRow mirrors a usage_tracking row: one row per (user, month).
type UsageRow struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	Month                  time.Time
	ThumbnailsGenerated    int64
	MagicEditsUsed         int64
	UpscalesUsed           int64
	BackgroundRemovalsUsed int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const getUsage = `
SELECT id, user_id, month,
       thumbnails_generated, magic_edits_used, upscales_used, background_removals_used,
       created_at, updated_at
FROM usage_tracking
WHERE user_id = $1 AND month = $2
`

// GetUsage is the non-mutating ledger peek. Returns sql.ErrNoRows when no
// operation has been recorded in the period yet.
func (q *Queries) GetUsage(ctx context.Context, userID uuid.UUID, month time.Time) (*UsageRow, error) {
	row := q.db.QueryRowContext(ctx, getUsage, userID, month)

	var u UsageRow
	err := row.Scan(
		&u.ID, &u.UserID, &u.Month,
		&u.ThumbnailsGenerated, &u.MagicEditsUsed, &u.UpscalesUsed, &u.BackgroundRemovalsUsed,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// The admit-and-increment is a single conditional upsert so the
// check-then-increment is one atomic unit per (user, month) row:
//
//   - First use in a period takes the INSERT arm; the UNIQUE (user_id, month)
//     constraint guarantees exactly one row survives a concurrent creation
//     race (the loser takes the DO UPDATE arm instead).
//   - Subsequent calls take the DO UPDATE arm, which locks the row and
//     re-reads its latest committed version before evaluating the WHERE
//     clause, so concurrent callers observe a serial order of increments.
//   - When the WHERE clause rejects the update (capped kind at its limit),
//     no mutation happens and no row is returned.
//
// $8 is true for uncapped kinds, which are tracked but always admitted.
const admitAndIncrementUsage = `
INSERT INTO usage_tracking AS u (
    id, user_id, month,
    thumbnails_generated, magic_edits_used, upscales_used, background_removals_used
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, month) DO UPDATE SET
    thumbnails_generated     = u.thumbnails_generated + EXCLUDED.thumbnails_generated,
    magic_edits_used         = u.magic_edits_used + EXCLUDED.magic_edits_used,
    upscales_used            = u.upscales_used + EXCLUDED.upscales_used,
    background_removals_used = u.background_removals_used + EXCLUDED.background_removals_used,
    updated_at               = now()
WHERE $8::boolean OR u.thumbnails_generated < $9::bigint
RETURNING thumbnails_generated, magic_edits_used, upscales_used, background_removals_used
`

// AdmitAndIncrementUsageParams configures one ledger admission.
// Exactly one of the delta fields should be 1; the rest stay 0.
type AdmitAndIncrementUsageParams struct {
	UserID                 uuid.UUID
	Month                  time.Time
	ThumbnailsGenerated    int64
	MagicEditsUsed         int64
	UpscalesUsed           int64
	BackgroundRemovalsUsed int64
	Unlimited              bool  // true bypasses the generate cap
	Limit                  int64 // generate cap, ignored when Unlimited
}

// AdmitAndIncrementUsageRow is the post-increment state of the counters.
type AdmitAndIncrementUsageRow struct {
	ThumbnailsGenerated    int64
	MagicEditsUsed         int64
	UpscalesUsed           int64
	BackgroundRemovalsUsed int64
}

// AdmitAndIncrementUsage atomically admits and counts one operation.
// Returns sql.ErrNoRows when the admission was denied; in that case no
// mutation was performed.
func (q *Queries) AdmitAndIncrementUsage(ctx context.Context, arg AdmitAndIncrementUsageParams) (*AdmitAndIncrementUsageRow, error) {
	row := q.db.QueryRowContext(ctx, admitAndIncrementUsage,
		uuid.New(), arg.UserID, arg.Month,
		arg.ThumbnailsGenerated, arg.MagicEditsUsed, arg.UpscalesUsed, arg.BackgroundRemovalsUsed,
		arg.Unlimited, arg.Limit,
	)

	var r AdmitAndIncrementUsageRow
	err := row.Scan(&r.ThumbnailsGenerated, &r.MagicEditsUsed, &r.UpscalesUsed, &r.BackgroundRemovalsUsed)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const listUsageArtifactGaps = `
SELECT u.user_id, u.month, u.thumbnails_generated, COALESCE(a.recorded, 0)
FROM usage_tracking u
LEFT JOIN (
    SELECT user_id,
           (date_trunc('month', created_at AT TIME ZONE 'UTC'))::date AS month,
           COUNT(*) AS recorded
    FROM generated_images
    WHERE operation_type = 'generate'
    GROUP BY 1, 2
) a ON a.user_id = u.user_id AND a.month = u.month
WHERE u.month = $1 AND u.thumbnails_generated > COALESCE(a.recorded, 0)
`

// UsageArtifactGap reports a (user, month) whose generate counter exceeds
// the number of recorded generate artifacts. Gaps appear when the
// best-effort artifact append fails after a counted admission.
type UsageArtifactGap struct {
	UserID   uuid.UUID
	Month    time.Time
	Counted  int64
	Recorded int64
}

// ListUsageArtifactGaps returns counter/artifact mismatches for a month.
func (q *Queries) ListUsageArtifactGaps(ctx context.Context, month time.Time) ([]UsageArtifactGap, error) {
	rows, err := q.db.QueryContext(ctx, listUsageArtifactGaps, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gaps []UsageArtifactGap
	for rows.Next() {
		var g UsageArtifactGap
		if err := rows.Scan(&g.UserID, &g.Month, &g.Counted, &g.Recorded); err != nil {
			return nil, err
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}
