// Package gcs stores area images in a Google Cloud Storage bucket. The object
// key doubles as the public id.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"realty/internal/adapters/observability"
	"realty/internal/domain"
)

type Store struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
}

// New opens a storage client. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS
// (file path); otherwise the default credential chain applies.
func New(ctx context.Context, bucket, cdnDomain string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS bucket name")
	}
	opts := append(clientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	cl, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{client: cl, bucket: bucket, cdnDomain: cdnDomain}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Upload(ctx context.Context, req domain.UploadRequest) (img domain.ImageAsset, err error) {
	start := time.Now()
	defer func() { observability.ObserveImageStore("gcs", "upload", err, time.Since(start)) }()
	observability.ObserveUploadSize("gcs", len(req.Data))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := ObjectKey(req.Folder, req.Filename, req.ContentType)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = req.ContentType
	if w.ContentType == "" {
		w.ContentType = contentTypeForKey(key)
	}
	w.CacheControl = "public, max-age=31536000"
	// Bucket objects are stored as uploaded; the resize limit travels as
	// metadata for the CDN image transformer.
	if md := transformMetadata(req.Transform); md != nil {
		w.Metadata = md
	}
	if _, err := io.Copy(w, bytes.NewReader(req.Data)); err != nil {
		_ = w.Close()
		return domain.ImageAsset{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return domain.ImageAsset{URL: PublicURL(s.bucket, s.cdnDomain, key), PublicID: key}, nil
}

// Delete removes the object. A missing object counts as deleted.
func (s *Store) Delete(ctx context.Context, publicID string) (err error) {
	start := time.Now()
	defer func() { observability.ObserveImageStore("gcs", "delete", err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(publicID).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", publicID, s.bucket, err)
	}
	return nil
}

// ObjectKey builds folder/<uuid><ext>. The extension comes from the filename,
// falling back to the content type.
func ObjectKey(folder, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = extForContentType(contentType)
	}
	name := uuid.NewString() + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func PublicURL(bucket, cdnDomain, key string) string {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimRight(cdnDomain, "/"), key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func transformMetadata(t domain.Transform) map[string]string {
	if t.Width <= 0 && t.Height <= 0 {
		return nil
	}
	md := map[string]string{}
	if t.Width > 0 {
		md["max-width"] = strconv.Itoa(t.Width)
	}
	if t.Height > 0 {
		md["max-height"] = strconv.Itoa(t.Height)
	}
	if t.Crop != "" {
		md["crop"] = t.Crop
	}
	return md
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func extForContentType(ct string) string {
	switch ct {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
