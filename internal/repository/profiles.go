package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ProfileRow mirrors a user_profiles row. Profiles are synced by the
// identity provider; this service never writes them.
type ProfileRow struct {
	ID        uuid.UUID
	Email     string
	FullName  sql.NullString
	AvatarURL sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

const getProfile = `
SELECT id, email, full_name, avatar_url, created_at, updated_at
FROM user_profiles
WHERE id = $1
`

// GetProfile returns the account profile, or sql.ErrNoRows if the identity
// provider has not synced one yet.
func (q *Queries) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileRow, error) {
	row := q.db.QueryRowContext(ctx, getProfile, userID)

	var p ProfileRow
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
