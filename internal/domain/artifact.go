package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArtifactRecord is the append-only audit row written for every admitted
// operation. Immutable once written.
type ArtifactRecord struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ImageURL      string
	PreviewURL    string // optional small preview rendered at archival time
	Prompt        string
	Style         string
	AspectRatio   string
	OperationKind OperationKind
	Metadata      json.RawMessage
	CreatedAt     time.Time
}

// RecordOperationParams carries the validated inbound request for the
// quota enforcer.
type RecordOperationParams struct {
	UserID      uuid.UUID
	Kind        OperationKind
	ImageURL    string
	Prompt      string
	Style       string
	AspectRatio string
	Metadata    json.RawMessage
}
