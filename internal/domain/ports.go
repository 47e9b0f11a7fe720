package domain

import "context"

type AreaRepository interface {
	// Write paths
	Insert(ctx context.Context, a Area) (Area, error)
	// Update replaces the stored document only if its version still equals
	// expectedVersion; otherwise ErrConflict (or ErrNotFound if it is gone).
	Update(ctx context.Context, a Area, expectedVersion int64) (Area, error)
	Delete(ctx context.Context, id string) error

	// Read paths
	Get(ctx context.Context, id string) (Area, error)
	List(ctx context.Context) ([]Area, error)
}

// ImageStore is the remote object storage holding image bytes.
type ImageStore interface {
	Upload(ctx context.Context, req UploadRequest) (ImageAsset, error)
	Delete(ctx context.Context, publicID string) error
}

type UploadRequest struct {
	Data        []byte
	Filename    string
	ContentType string
	Folder      string
	Transform   Transform
}

// Transform is applied by the store on ingest. Zero value means none.
type Transform struct {
	Width  int
	Height int
	Crop   string // e.g. "limit"
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
