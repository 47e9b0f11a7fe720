package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"realty/internal/domain"
)

// DeleteFailure selects what a failed remote delete does to the enclosing
// operation.
type DeleteFailure int

const (
	// DeleteContinue logs the failure and lets the document mutation proceed.
	DeleteContinue DeleteFailure = iota
	// DeleteAbort surfaces the failure and leaves the document untouched.
	DeleteAbort
)

// CleanupPolicy governs how the orchestrator reacts to image store failures.
// Upload failures always abort: a document is never saved with a hole in its
// image list.
type CleanupPolicy struct {
	DeleteFailure DeleteFailure
	// RollbackUploads deletes assets uploaded earlier in a request whose
	// upload or document write later failed.
	RollbackUploads bool
	// PruneDetached deletes assets an update dropped from the aggregate.
	PruneDetached bool
}

func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{DeleteFailure: DeleteContinue, RollbackUploads: true, PruneDetached: true}
}

// ImageOrchestrator is the only caller of the image store.
type ImageOrchestrator struct {
	store     domain.ImageStore
	policy    CleanupPolicy
	folder    string
	transform domain.Transform
}

func NewImageOrchestrator(store domain.ImageStore, policy CleanupPolicy, folder string, t domain.Transform) *ImageOrchestrator {
	return &ImageOrchestrator{store: store, policy: policy, folder: folder, transform: t}
}

func (o *ImageOrchestrator) Policy() CleanupPolicy { return o.policy }

func (o *ImageOrchestrator) Upload(ctx context.Context, f FilePart) (domain.ImageAsset, error) {
	img, err := o.store.Upload(ctx, domain.UploadRequest{
		Data:        f.Data,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Folder:      o.folder,
		Transform:   o.transform,
	})
	if err != nil {
		return domain.ImageAsset{}, fmt.Errorf("%w: upload %q: %v", domain.ErrUpstreamStorage, f.Filename, err)
	}
	if strings.TrimSpace(img.PublicID) == "" {
		return domain.ImageAsset{}, fmt.Errorf("%w: upload %q returned no public_id", domain.ErrUpstreamStorage, f.Filename)
	}
	return img, nil
}

// UploadAll uploads files sequentially in order. On the first failure the
// already stored assets are rolled back (per policy) and the error returned.
func (o *ImageOrchestrator) UploadAll(ctx context.Context, files []FilePart) ([]domain.ImageAsset, error) {
	out := make([]domain.ImageAsset, 0, len(files))
	for _, f := range files {
		img, err := o.Upload(ctx, f)
		if err != nil {
			log.Error().Err(err).Str("filename", f.Filename).Int("uploaded", len(out)).Msg("image upload failed")
			o.Rollback(ctx, out)
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// Rollback best-effort deletes assets stored earlier in a failed request.
func (o *ImageOrchestrator) Rollback(ctx context.Context, imgs []domain.ImageAsset) {
	if !o.policy.RollbackUploads {
		return
	}
	for _, img := range imgs {
		if err := o.store.Delete(ctx, img.PublicID); err != nil {
			log.Warn().Err(err).Str("public_id", img.PublicID).Msg("rollback delete failed")
		}
	}
}

// Delete removes one asset. Under DeleteContinue a failure is logged and nil
// returned.
func (o *ImageOrchestrator) Delete(ctx context.Context, areaID, publicID string) error {
	err := o.store.Delete(ctx, publicID)
	if err == nil {
		return nil
	}
	if o.policy.DeleteFailure == DeleteAbort {
		return fmt.Errorf("%w: delete %q: %v", domain.ErrUpstreamStorage, publicID, err)
	}
	log.Warn().Err(err).Str("area_id", areaID).Str("public_id", publicID).Msg("image delete failed; continuing")
	return nil
}

// DeleteAll attempts every id in order, continuing past tolerated failures.
func (o *ImageOrchestrator) DeleteAll(ctx context.Context, areaID string, ids []string) error {
	for _, id := range ids {
		if err := o.Delete(ctx, areaID, id); err != nil {
			return err
		}
	}
	return nil
}

// CascadeDelete removes every asset owned by the aggregate: Area-level images
// first, then each SubArea's images in order.
func (o *ImageOrchestrator) CascadeDelete(ctx context.Context, a domain.Area) error {
	return o.DeleteAll(ctx, a.ID, a.PublicIDs())
}

// detached lists handles present in before but absent from after, in
// before's order.
func detached(before, after domain.Area) []string {
	keep := ownedSet(after)
	var out []string
	for _, id := range before.PublicIDs() {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
