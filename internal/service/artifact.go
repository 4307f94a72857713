package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"log/slog"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/metrics"
	"github.com/thumbgate/thumbgate/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ArchiveStatus describes what happened to a submitted image URL.
type ArchiveStatus string

const (
	// ArchiveStored means the inline image bytes were copied to object
	// storage and the returned URL points at the archived copy.
	ArchiveStored ArchiveStatus = "stored"

	// ArchivePassthrough means the URL was already an http(s) reference
	// and was recorded as-is.
	ArchivePassthrough ArchiveStatus = "passthrough"
)

// ArchiveResult is the outcome of archiving one artifact image.
type ArchiveResult struct {
	ImageURL   string
	PreviewURL string // empty when no preview was rendered
	Status     ArchiveStatus
}

// ArtifactArchiver persists submitted artifact images. Generation
// frontends typically hand back data: URIs or short-lived signed URLs;
// archiving gives the audit trail a URL that outlives both.
type ArtifactArchiver interface {
	Archive(ctx context.Context, userID uuid.UUID, imageURL string) (*ArchiveResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

const (
	// maxArtifactSize caps inline image payloads at 20 MiB.
	maxArtifactSize = 20 << 20

	previewWidth  = 320
	previewHeight = 180

	// archivedURLTTL is the presign window for storage backends without a
	// public base URL.
	archivedURLTTL = 7 * 24 * time.Hour
)

type storageArchiver struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewArtifactArchiver creates an archiver backed by object storage.
func NewArtifactArchiver(store storage.Storage, logger *slog.Logger) ArtifactArchiver {
	return &storageArchiver{
		storage: store,
		logger:  logger,
	}
}

// Archive stores inline (data: URI) image payloads in object storage and
// renders a small JPEG preview alongside. Plain http(s) URLs pass through
// untouched.
func (a *storageArchiver) Archive(ctx context.Context, userID uuid.UUID, imageURL string) (*ArchiveResult, error) {
	if !strings.HasPrefix(imageURL, "data:") {
		metrics.ArtifactsArchived.WithLabelValues("passthrough").Inc()
		return &ArchiveResult{ImageURL: imageURL, Status: ArchivePassthrough}, nil
	}

	contentType, data, err := decodeDataURI(imageURL)
	if err != nil {
		metrics.ArtifactsArchived.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !storage.IsAllowedImageType(contentType) {
		metrics.ArtifactsArchived.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("unsupported image type %q", contentType)
	}

	key := storage.ArtifactKey(userID, storage.ExtensionFor(contentType))
	err = a.storage.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxArtifactSize,
		Public:      true,
	})
	if err != nil {
		metrics.ArtifactsArchived.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	imageLoc, err := a.storage.URL(ctx, key, archivedURLTTL)
	if err != nil {
		metrics.ArtifactsArchived.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to resolve artifact url: %w", err)
	}

	result := &ArchiveResult{ImageURL: imageLoc, Status: ArchiveStored}

	// The preview is a nicety for listing views; a decode failure here
	// does not invalidate the stored original.
	if previewURL, err := a.storePreview(ctx, userID, data); err != nil {
		a.logger.Warn("failed to render artifact preview", "user_id", userID, "error", err)
	} else {
		result.PreviewURL = previewURL
	}

	metrics.ArtifactsArchived.WithLabelValues("stored").Inc()
	return result, nil
}

// storePreview renders a 320x180 JPEG preview and stores it next to the
// artifact.
func (a *storageArchiver) storePreview(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	preview := imaging.Fit(img, previewWidth, previewHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	key := storage.PreviewKey(userID)
	err = a.storage.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: "image/jpeg",
		Public:      true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}

	return a.storage.URL(ctx, key, archivedURLTTL)
}

// decodeDataURI splits a data:<type>;base64,<payload> URI into its
// content type and decoded bytes.
func decodeDataURI(uri string) (string, []byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data uri")
	}

	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("unsupported data uri encoding %q", encoding)
	}
	if len(payload) > maxArtifactSize*4/3 {
		return "", nil, storage.ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data uri payload: %w", err)
	}
	return contentType, data, nil
}
