package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"realty/internal/domain"
)

const listKey = "areas:all"

// shared repository reads outlive any single caller, bounded by this timeout
const fillTimeout = 10 * time.Second

func areaKey(id string) string { return "area:" + id }

type QueryService struct {
	repo     domain.AreaRepository
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group

	// fillMu orders cache fills against invalidations; gen counts invalidations.
	fillMu sync.Mutex
	gen    uint64
}

func NewQueryService(r domain.AreaRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// Invalidate drops the cached Area and list. A fill whose repository read
// started before this call will not write its result back.
func (s *QueryService) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.gen++
	_ = s.cache.Del(ctx, areaKey(id))
	_ = s.cache.Del(ctx, listKey)
}

func (s *QueryService) generation() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.gen
}

// fill stores v unless an invalidation happened since gen was taken.
func (s *QueryService) fill(ctx context.Context, gen uint64, key string, v any) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.gen != gen {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from any one caller, and each caller still stops waiting when its
// own ctx is done.
func (s *QueryService) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *QueryService) GetArea(ctx context.Context, id string) (domain.Area, error) {
	key := areaKey(id)
	var a domain.Area
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &a); ok {
			return a, nil
		}
	}
	// concurrent misses for the same key share one repository read
	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		gen := s.generation()
		got, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		got.Normalize()
		if s.cache != nil {
			s.fill(ctx, gen, key, got)
		}
		return got, nil
	})
	if err != nil {
		return domain.Area{}, err
	}
	return v.(domain.Area).Clone(), nil
}

func (s *QueryService) ListAreas(ctx context.Context) ([]domain.Area, error) {
	var out []domain.Area
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, listKey, &out); ok {
			return out, nil
		}
	}
	v, err := s.shared(ctx, listKey, func(ctx context.Context) (any, error) {
		gen := s.generation()
		as, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		for i := range as {
			as[i].Normalize()
		}
		// optional size guard
		if s.cache != nil {
			if b, _ := json.Marshal(as); len(b) < 1_000_000 {
				s.fill(ctx, gen, listKey, as)
			}
		}
		return as, nil
	})
	if err != nil {
		return nil, err
	}
	return deepCopyAreas(v.([]domain.Area)), nil
}

// copy to avoid aliasing the slice shared by singleflight callers and the cache
func deepCopyAreas(in []domain.Area) []domain.Area {
	out := make([]domain.Area, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
