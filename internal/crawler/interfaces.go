package crawler

import (
	"context"
	"time"
)

// Store persists image resources. Implementations must provide atomic
// per-record writes; the engine performs no multi-record transactions.
type Store interface {
	CreateResource(ctx context.Context, res ImageResource) error
	// UpdateResourceStatus writes status, error text, timestamp, and
	// (when file is non-nil) the file metadata as a single record update.
	// An empty errText clears any stored error message.
	UpdateResourceStatus(ctx context.Context, id string, status DownloadStatus, errText string, file *FileInfo, at time.Time) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
	GetResource(ctx context.Context, id string) (ImageResource, error)
	BulkCreateResources(ctx context.Context, res []ImageResource) error
}

// BlobStore writes raw image bytes and returns the stored path. Writes are
// atomic: a partially written object is never observable at the final path.
type BlobStore interface {
	WriteAtomic(ctx context.Context, path string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

// SearchClient pages through provider search results.
type SearchClient interface {
	Search(ctx context.Context, query string, page, perPage int) (SearchPage, error)
}

// Fetcher downloads the bytes for one resource and stores them.
type Fetcher interface {
	Fetch(ctx context.Context, res ImageResource) (FileInfo, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces resource and job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
