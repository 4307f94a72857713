// Package storage provides durable object storage for archived artifacts.
//
// Two implementations exist: LocalStorage (filesystem, development) and
// R2Storage (Cloudflare R2 / S3-compatible, production). The quota
// enforcer archives submitted artifact bytes here so the recorded image
// URL outlives whatever ephemeral URL the generation frontend produced.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for object storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the returned reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object. For public objects this
	// is permanent; otherwise a presigned URL valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type; auto-detected when empty.
	ContentType string

	// MaxSize in bytes; ErrTooLarge when exceeded. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object publicly readable (R2 ACL; informational
	// for local storage).
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // root directory, e.g. "./storage"
	BaseURL  string // public URL prefix, e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // optional custom-domain URL; presigned URLs otherwise
	Region          string // any valid region string, default "auto"
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// ArtifactKey generates a storage key for an archived artifact image.
// Format: accounts/{userID}/artifacts/{uuid}{ext}
func ArtifactKey(userID uuid.UUID, ext string) string {
	return fmt.Sprintf("accounts/%s/artifacts/%s%s", userID, uuid.New(), ext)
}

// PreviewKey generates a storage key for an artifact's preview thumbnail.
// Previews are always JPEG.
func PreviewKey(userID uuid.UUID) string {
	return fmt.Sprintf("accounts/%s/previews/%s.jpg", userID, uuid.New())
}
