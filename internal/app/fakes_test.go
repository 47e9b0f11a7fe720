package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"realty/internal/domain"
)

// ---- fakes ----

type memRepo struct {
	mu      sync.Mutex
	docs    map[string][]byte
	order   []string
	seq     int
	gets    int
	updates int
	failOn  string // "insert" | "update" | "delete"
}

func newMemRepo() *memRepo { return &memRepo{docs: map[string][]byte{}} }

func (r *memRepo) put(a domain.Area) {
	b, _ := json.Marshal(a)
	r.docs[a.ID] = b
}

func (r *memRepo) load(id string) (domain.Area, bool) {
	b, ok := r.docs[id]
	if !ok {
		return domain.Area{}, false
	}
	var a domain.Area
	_ = json.Unmarshal(b, &a)
	return a, true
}

func (r *memRepo) Insert(ctx context.Context, a domain.Area) (domain.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "insert" {
		return domain.Area{}, errors.New("insert failed")
	}
	r.seq++
	a.ID = "area" + strconv.Itoa(r.seq)
	r.put(a)
	r.order = append(r.order, a.ID)
	out, _ := r.load(a.ID)
	return out, nil
}

func (r *memRepo) Update(ctx context.Context, a domain.Area, expectedVersion int64) (domain.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "update" {
		return domain.Area{}, errors.New("update failed")
	}
	cur, ok := r.load(a.ID)
	if !ok {
		return domain.Area{}, domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.Area{}, domain.ErrConflict
	}
	r.updates++
	r.put(a)
	out, _ := r.load(a.ID)
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "delete" {
		return errors.New("delete failed")
	}
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.docs, id)
	for i, x := range r.order {
		if x == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) Get(ctx context.Context, id string) (domain.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	a, ok := r.load(id)
	if !ok {
		return domain.Area{}, fmt.Errorf("area %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (r *memRepo) List(ctx context.Context) ([]domain.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Area, 0, len(r.order))
	for _, id := range r.order {
		a, _ := r.load(id)
		out = append(out, a)
	}
	return out, nil
}

type stubStore struct {
	mu           sync.Mutex
	uploads      []domain.UploadRequest
	deletes      []string
	failUploadAt int // 1-based; 0 disables
	failDeleteAt int // 1-based; 0 disables
}

func (s *stubStore) Upload(ctx context.Context, req domain.UploadRequest) (domain.ImageAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, req)
	n := len(s.uploads)
	if s.failUploadAt == n {
		return domain.ImageAsset{}, errors.New("store unavailable")
	}
	id := fmt.Sprintf("%s/new%d", req.Folder, n)
	return domain.ImageAsset{URL: "https://img.example/" + id, PublicID: id}, nil
}

func (s *stubStore) Delete(ctx context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, publicID)
	if s.failDeleteAt == len(s.deletes) {
		return errors.New("store unavailable")
	}
	return nil
}

// jsonCache round-trips values through JSON like the Redis adapter does.
type jsonCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}
