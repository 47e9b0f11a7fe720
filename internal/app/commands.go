package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"realty/internal/domain"
)

type AreaService struct {
	repo      domain.AreaRepository
	images    *ImageOrchestrator
	cache     domain.Cache
	matchMode MatchMode
	now       func() time.Time
	queries   *QueryService
}

func NewAreaService(r domain.AreaRepository, images *ImageOrchestrator, cache domain.Cache, mode MatchMode) *AreaService {
	if mode == "" {
		mode = MatchSuffix
	}
	return &AreaService{
		repo:      r,
		images:    images,
		cache:     cache,
		matchMode: mode,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// WithQueries routes cache invalidation through q, so reads that began
// before a write cannot repopulate the cache with the old document.
func (s *AreaService) WithQueries(q *QueryService) *AreaService {
	s.queries = q
	return s
}

// Create decodes the form, uploads every file, then inserts the document.
// Nothing is written unless all uploads succeed.
func (s *AreaService) Create(ctx context.Context, f Form) (domain.Area, error) {
	d, err := decodeAreaForm(f, false)
	if err != nil {
		return domain.Area{}, err
	}
	candidate := buildCreate(d)
	if err := candidate.Validate(); err != nil {
		return domain.Area{}, err
	}

	uploaded, err := s.images.UploadAll(ctx, d.Files)
	if err != nil {
		return domain.Area{}, err
	}
	candidate.Images = uploaded
	now := s.now()
	candidate.Version = 1
	candidate.CreatedAt, candidate.UpdatedAt = now, now
	candidate.Normalize()

	saved, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		s.images.Rollback(ctx, uploaded)
		return domain.Area{}, fmt.Errorf("insert area: %w", err)
	}
	s.invalidate(ctx, saved.ID)
	log.Info().Str("area_id", saved.ID).Int("images", len(saved.Images)).Int("sub_areas", len(saved.SubAreas)).Msg("area created")
	return saved, nil
}

// Update merges the form onto the stored document. The image list follows
// mergeUpdate's policy; dropped assets are pruned after a successful write.
func (s *AreaService) Update(ctx context.Context, id string, f Form) (domain.Area, error) {
	d, err := decodeAreaForm(f, true)
	if err != nil {
		return domain.Area{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Area{}, err
	}
	if d.Version != nil && *d.Version != current.Version {
		return domain.Area{}, fmt.Errorf("%w: area %s is at version %d, payload has %d",
			domain.ErrConflict, id, current.Version, *d.Version)
	}
	if err := mergeUpdate(current, d, nil).Validate(); err != nil {
		return domain.Area{}, err
	}

	uploaded, err := s.images.UploadAll(ctx, d.Files)
	if err != nil {
		return domain.Area{}, err
	}
	next := mergeUpdate(current, d, uploaded)

	saved, err := s.save(ctx, current, next)
	if err != nil {
		s.images.Rollback(ctx, uploaded)
		return domain.Area{}, err
	}
	if s.images.Policy().PruneDetached {
		// best-effort regardless of DeleteFailure: the document is already written
		for _, pid := range detached(current, saved) {
			if err := s.images.Delete(ctx, id, pid); err != nil {
				log.Warn().Err(err).Str("area_id", id).Str("public_id", pid).Msg("prune detached image failed")
			}
		}
	}
	return saved, nil
}

// Delete removes every owned asset, then the document.
func (s *AreaService) Delete(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.images.CascadeDelete(ctx, current); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	log.Info().Str("area_id", id).Int("images", len(current.PublicIDs())).Msg("area deleted")
	return nil
}

// AddSubArea appends a new SubArea, with its uploaded images, to the Area.
func (s *AreaService) AddSubArea(ctx context.Context, id string, f Form) (domain.Area, error) {
	d, err := decodeSubAreaForm(f)
	if err != nil {
		return domain.Area{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Area{}, err
	}
	sa := d.SubArea
	sa.ID = uuid.NewString()
	sa.Images = []domain.ImageAsset{}

	next := current.Clone()
	next.SubAreas = append(next.SubAreas, sa)
	if err := next.Validate(); err != nil {
		return domain.Area{}, err
	}

	uploaded, err := s.images.UploadAll(ctx, d.Files)
	if err != nil {
		return domain.Area{}, err
	}
	next.SubAreas[len(next.SubAreas)-1].Images = uploaded

	saved, err := s.save(ctx, current, next)
	if err != nil {
		s.images.Rollback(ctx, uploaded)
		return domain.Area{}, err
	}
	return saved, nil
}

// DeleteAreaImage removes one Area-level image resolved from fragment.
// mode "" uses the service default.
func (s *AreaService) DeleteAreaImage(ctx context.Context, id, fragment string, mode MatchMode) (domain.Area, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Area{}, err
	}
	idx := findImage(current.Images, fragment, s.mode(mode))
	if idx < 0 {
		return domain.Area{}, fmt.Errorf("%w: image %q in area %s", domain.ErrNotFound, fragment, id)
	}
	if err := s.images.Delete(ctx, id, current.Images[idx].PublicID); err != nil {
		return domain.Area{}, err
	}
	next := current.Clone()
	next.Images = append(next.Images[:idx], next.Images[idx+1:]...)
	return s.save(ctx, current, next)
}

// DeleteSubAreaImage removes one image from the SubArea addressed by ref.
func (s *AreaService) DeleteSubAreaImage(ctx context.Context, id string, ref SubAreaRef, fragment string, mode MatchMode) (domain.Area, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Area{}, err
	}
	si, err := ResolveSubArea(current, ref)
	if err != nil {
		return domain.Area{}, err
	}
	idx := findImage(current.SubAreas[si].Images, fragment, s.mode(mode))
	if idx < 0 {
		return domain.Area{}, fmt.Errorf("%w: image %q in sub-area %s", domain.ErrNotFound, fragment, ref)
	}
	if err := s.images.Delete(ctx, id, current.SubAreas[si].Images[idx].PublicID); err != nil {
		return domain.Area{}, err
	}
	next := current.Clone()
	imgs := next.SubAreas[si].Images
	next.SubAreas[si].Images = append(imgs[:idx], imgs[idx+1:]...)
	return s.save(ctx, current, next)
}

// save writes next conditionally on current's version and invalidates caches.
func (s *AreaService) save(ctx context.Context, current, next domain.Area) (domain.Area, error) {
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	next.Normalize()
	if err := next.Validate(); err != nil {
		return domain.Area{}, err
	}
	saved, err := s.repo.Update(ctx, next, current.Version)
	if err != nil {
		return domain.Area{}, err
	}
	s.invalidate(ctx, current.ID)
	return saved, nil
}

func (s *AreaService) mode(m MatchMode) MatchMode {
	if m == "" {
		return s.matchMode
	}
	return m
}

func (s *AreaService) invalidate(ctx context.Context, id string) {
	if s.queries != nil {
		s.queries.Invalidate(ctx, id)
		return
	}
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, areaKey(id))
	_ = s.cache.Del(ctx, listKey)
}
