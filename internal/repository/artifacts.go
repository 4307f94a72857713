package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// ArtifactRow mirrors a generated_images row. Append-only.
type ArtifactRow struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ImageURL      string
	PreviewURL    sql.NullString
	Prompt        sql.NullString
	Style         sql.NullString
	AspectRatio   sql.NullString
	OperationType string
	Metadata      pqtype.NullRawMessage
	CreatedAt     time.Time
}

const insertArtifact = `
INSERT INTO generated_images (
    id, user_id, image_url, preview_url, prompt, style, aspect_ratio, operation_type, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at
`

// InsertArtifactParams carries one artifact record.
type InsertArtifactParams struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ImageURL      string
	PreviewURL    sql.NullString
	Prompt        sql.NullString
	Style         sql.NullString
	AspectRatio   sql.NullString
	OperationType string
	Metadata      pqtype.NullRawMessage
}

// InsertArtifact appends one artifact record and returns its creation time.
func (q *Queries) InsertArtifact(ctx context.Context, arg InsertArtifactParams) (time.Time, error) {
	row := q.db.QueryRowContext(ctx, insertArtifact,
		arg.ID, arg.UserID, arg.ImageURL, arg.PreviewURL,
		arg.Prompt, arg.Style, arg.AspectRatio, arg.OperationType, arg.Metadata,
	)

	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		return time.Time{}, err
	}
	return createdAt, nil
}

const listRecentArtifacts = `
SELECT id, user_id, image_url, preview_url, prompt, style, aspect_ratio, operation_type, metadata, created_at
FROM generated_images
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// ListRecentArtifacts returns the account's newest artifacts, newest first.
func (q *Queries) ListRecentArtifacts(ctx context.Context, userID uuid.UUID, limit int32) ([]ArtifactRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentArtifacts, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []ArtifactRow
	for rows.Next() {
		var a ArtifactRow
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.ImageURL, &a.PreviewURL,
			&a.Prompt, &a.Style, &a.AspectRatio, &a.OperationType, &a.Metadata, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
