package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// tolerance under which a re-put vector counts as identical.
const tolerance = 1e-5

// CacheConfig configures Cache.
type CacheConfig struct {
	// Dim fixes the generation width up front.  0 lets the first vector
	// decide.
	Dim int
}

// Cache is the write-through embedding cache shared by training and
// inference.  All vectors of one generation share one width.
type Cache struct {
	store    Store
	computer *Computer
	logger   logging.Logger
	metrics  common.PPIMetrics

	mu  sync.RWMutex
	dim int

	group singleflight.Group
}

// NewCache wires a store and a computer.  computer may be nil for a
// read-only cache.
func NewCache(store Store, computer *Computer, cfg CacheConfig, logger logging.Logger, metrics common.PPIMetrics) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = common.NewNoopPPIMetrics()
	}
	return &Cache{store: store, computer: computer, dim: cfg.Dim, logger: logger, metrics: metrics}
}

// Dim is the generation width, 0 until known.
func (c *Cache) Dim() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim
}

// StoreName names the backend.
func (c *Cache) StoreName() string { return c.store.Name() }

func (c *Cache) checkDim(id string, v Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(v) == 0 {
		return errors.EmbeddingCompute("empty embedding").WithDetail(id)
	}
	if c.dim == 0 {
		c.dim = len(v)
		return nil
	}
	if len(v) != c.dim {
		return errors.Newf(errors.ErrCodeEmbeddingDimMismatch,
			"embedding for %s has width %d, cache generation is %d", id, len(v), c.dim)
	}
	return nil
}

// Get returns the cached vector for id.
func (c *Cache) Get(ctx context.Context, id string) (Vector, bool, error) {
	v, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "embedding cache get")
	}
	c.metrics.RecordCacheAccess(ctx, c.store.Name(), ok)
	return v, ok, nil
}

// Put stores v under id.  Re-putting an identical vector is a no-op; a
// different vector for an existing id is ignored and the first value kept.
func (c *Cache) Put(ctx context.Context, id string, v Vector) error {
	if err := c.checkDim(id, v); err != nil {
		return err
	}
	prev, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "embedding cache get")
	}
	if ok {
		if !vectorsEqual(prev, v, tolerance) {
			c.logger.Warn("embedding cache keeps first value for id", logging.Accession(id))
		}
		return nil
	}
	if err := c.store.Put(ctx, id, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "embedding cache put")
	}
	return nil
}

// Len counts cached vectors.
func (c *Cache) Len(ctx context.Context) (int, error) {
	n, err := c.store.Len(ctx)
	if err == nil {
		c.metrics.RecordCacheSize(ctx, c.store.Name(), n)
	}
	return n, err
}

// Persist flushes in-memory backends.  Durable backends need nothing.
func (c *Cache) Persist(ctx context.Context) error {
	p, ok := c.store.(Persister)
	if !ok {
		return nil
	}
	if err := p.Persist(ctx); err != nil {
		return err
	}
	n, _ := c.Len(ctx)
	c.logger.Info("embedding cache persisted", logging.String("store", c.store.Name()), logging.Int("entries", n))
	return nil
}

// Load restores a persisted generation, or starts a fresh one when rebuild
// is set.
func (c *Cache) Load(ctx context.Context, rebuild bool) error {
	if rebuild {
		if r, ok := c.store.(Resetter); ok {
			if err := r.Reset(ctx); err != nil {
				return err
			}
		}
		c.logger.Info("embedding cache rebuild requested; starting empty generation")
		return nil
	}
	p, ok := c.store.(Persister)
	if !ok {
		return nil
	}
	if err := p.Load(ctx); err != nil {
		return err
	}
	if d, ok := dimOf(c.store); ok && d > 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dim != 0 && c.dim != d {
			return errors.Newf(errors.ErrCodeEmbeddingDimMismatch, "persisted cache dim %d, expected %d", d, c.dim)
		}
		c.dim = d
	}
	return nil
}

func dimOf(s Store) (int, bool) {
	type dimmer interface{ Dim() int }
	for {
		if d, ok := s.(dimmer); ok {
			return d.Dim(), true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return 0, false
		}
		s = u.Unwrap()
	}
}

// Failures maps ids to the reason they could not be embedded.
type Failures map[string]error

// GetOrCompute returns vectors for every item, computing and storing the
// misses.  Items whose sequence is rejected appear in the failures map.
// Duplicate ids are computed once.
func (c *Cache) GetOrCompute(ctx context.Context, items []Item) (map[string]Vector, Failures, error) {
	ids := make([]string, 0, len(items))
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		if _, dup := byID[it.ID]; dup {
			continue
		}
		byID[it.ID] = it
		ids = append(ids, it.ID)
	}

	found, err := c.store.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeCacheError, "embedding cache lookup")
	}
	var misses []Item
	for _, id := range ids {
		hit := false
		if _, ok := found[id]; ok {
			hit = true
		} else {
			misses = append(misses, byID[id])
		}
		c.metrics.RecordCacheAccess(ctx, c.store.Name(), hit)
	}
	failures := Failures{}
	if len(misses) == 0 {
		return found, failures, nil
	}
	if c.computer == nil {
		for _, it := range misses {
			failures[it.ID] = errors.New(errors.ErrCodeEmbeddingCompute, "embedding not cached and no encoder configured").WithDetail(it.ID)
		}
		return found, failures, nil
	}

	if len(misses) == 1 {
		it := misses[0]
		v, err := c.Embed(ctx, it)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeEmbeddingCompute) {
				failures[it.ID] = err
				return found, failures, nil
			}
			return nil, nil, err
		}
		found[it.ID] = v
		return found, failures, nil
	}

	res, err := c.computer.Compute(ctx, misses)
	if err != nil {
		return nil, nil, err
	}
	for id, ferr := range res.Failed {
		failures[id] = ferr
	}
	for _, it := range misses {
		v, ok := res.Vectors[it.ID]
		if !ok {
			continue
		}
		if err := c.Put(ctx, it.ID, v); err != nil {
			return nil, nil, err
		}
		found[it.ID] = v
	}
	return found, failures, nil
}

// Embed returns the vector for one item, computing it on a miss.
// Concurrent misses for the same id share one computation.
func (c *Cache) Embed(ctx context.Context, it Item) (Vector, error) {
	if v, ok, err := c.Get(ctx, it.ID); err != nil || ok {
		return v, err
	}
	if c.computer == nil {
		return nil, errors.New(errors.ErrCodeEmbeddingCompute, "embedding not cached and no encoder configured").WithDetail(it.ID)
	}
	v, err, _ := c.group.Do(it.ID, func() (interface{}, error) {
		if v, ok, err := c.store.Get(ctx, it.ID); err == nil && ok {
			return v, nil
		}
		res, err := c.computer.Compute(ctx, []Item{it})
		if err != nil {
			return nil, err
		}
		if ferr, ok := res.Failed[it.ID]; ok {
			return nil, ferr
		}
		vec, ok := res.Vectors[it.ID]
		if !ok {
			return nil, errors.EmbeddingCompute(fmt.Sprintf("no embedding produced for %s", it.ID))
		}
		if err := c.Put(ctx, it.ID, vec); err != nil {
			return nil, err
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Vector), nil
}

//Personal.AI order the ending
