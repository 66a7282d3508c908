package embedding

import (
	"context"
	"sync"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// MemoryStore keeps vectors in a map and snapshots them to an artifact
// store under one key.
type MemoryStore struct {
	mu       sync.RWMutex
	vecs     map[string]Vector
	dim      int
	dirty    bool
	snapshot storage.ArtifactStore
	key      string
}

// NewMemoryStore returns an empty store.  A nil snapshot store makes
// Persist and Load no-ops.
func NewMemoryStore(snapshot storage.ArtifactStore, key string) *MemoryStore {
	return &MemoryStore{vecs: make(map[string]Vector), snapshot: snapshot, key: key}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, id string) (Vector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vecs[id]
	return v, ok, nil
}

func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Vector, len(ids))
	for _, id := range ids {
		if v, ok := s.vecs[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, v Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vecs[id]; ok {
		return nil
	}
	if s.dim == 0 {
		s.dim = len(v)
	}
	s.vecs[id] = append(Vector(nil), v...)
	s.dirty = true
	return nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vecs), nil
}

// Dim is the width of stored vectors, 0 when empty.
func (s *MemoryStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Persist writes the snapshot.  An unchanged store is not rewritten.
func (s *MemoryStore) Persist(ctx context.Context) error {
	if s.snapshot == nil || s.key == "" {
		return nil
	}
	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	data, err := EncodeSnapshot(s.dim, s.vecs)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := s.snapshot.Put(ctx, s.key, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "persist embedding snapshot")
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Load merges the snapshot into the store.  A missing snapshot is not an
// error.  Entries already present are kept.
func (s *MemoryStore) Load(ctx context.Context) error {
	if s.snapshot == nil || s.key == "" {
		return nil
	}
	data, err := s.snapshot.Get(ctx, s.key)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "read embedding snapshot")
	}
	dim, entries, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim != 0 && len(entries) > 0 && dim != s.dim {
		return errors.Newf(errors.ErrCodeEmbeddingDimMismatch, "snapshot dim %d, store dim %d", dim, s.dim)
	}
	for id, v := range entries {
		if _, ok := s.vecs[id]; !ok {
			s.vecs[id] = v
		}
	}
	if s.dim == 0 && len(entries) > 0 {
		s.dim = dim
	}
	return nil
}

// Reset drops every entry; the next Persist overwrites the snapshot.
func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vecs = make(map[string]Vector)
	s.dim = 0
	s.dirty = true
	return nil
}

//Personal.AI order the ending
