package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore fronts a slower Store with a bounded in-process cache.  Writes go
// through to the backend first.
type LRUStore struct {
	next  Store
	cache *lru.Cache[string, Vector]
}

// NewLRUStore wraps next.  size <= 0 returns next unchanged.
func NewLRUStore(next Store, size int) (Store, error) {
	if size <= 0 {
		return next, nil
	}
	c, err := lru.New[string, Vector](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{next: next, cache: c}, nil
}

func (s *LRUStore) Name() string { return s.next.Name() }

// Unwrap returns the backend.
func (s *LRUStore) Unwrap() Store { return s.next }

func (s *LRUStore) Get(ctx context.Context, id string) (Vector, bool, error) {
	if v, ok := s.cache.Get(id); ok {
		return v, true, nil
	}
	v, ok, err := s.next.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	s.cache.Add(id, v)
	return v, true, nil
}

func (s *LRUStore) GetMany(ctx context.Context, ids []string) (map[string]Vector, error) {
	out := make(map[string]Vector, len(ids))
	var rest []string
	for _, id := range ids {
		if v, ok := s.cache.Get(id); ok {
			out[id] = v
		} else {
			rest = append(rest, id)
		}
	}
	if len(rest) == 0 {
		return out, nil
	}
	got, err := s.next.GetMany(ctx, rest)
	if err != nil {
		return nil, err
	}
	for id, v := range got {
		s.cache.Add(id, v)
		out[id] = v
	}
	return out, nil
}

func (s *LRUStore) Put(ctx context.Context, id string, v Vector) error {
	if err := s.next.Put(ctx, id, v); err != nil {
		return err
	}
	// Re-read so the front holds the value the backend kept.
	s.cache.Remove(id)
	return nil
}

func (s *LRUStore) Len(ctx context.Context) (int, error) { return s.next.Len(ctx) }

func (s *LRUStore) Persist(ctx context.Context) error {
	if p, ok := s.next.(Persister); ok {
		return p.Persist(ctx)
	}
	return nil
}

func (s *LRUStore) Load(ctx context.Context) error {
	s.cache.Purge()
	if p, ok := s.next.(Persister); ok {
		return p.Load(ctx)
	}
	return nil
}

func (s *LRUStore) Reset(ctx context.Context) error {
	s.cache.Purge()
	if r, ok := s.next.(Resetter); ok {
		return r.Reset(ctx)
	}
	return nil
}

//Personal.AI order the ending
