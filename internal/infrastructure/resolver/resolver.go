// Package resolver provides SequenceResolver implementations and helpers
// shared by the training pipeline and the inference service: a static
// in-memory table, a memoizing decorator and concurrent batch resolution.
package resolver

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Static
// ─────────────────────────────────────────────────────────────────────────────

// Static resolves from a fixed table.
type Static struct {
	seqs map[string]string
}

// NewStatic copies seqs, normalizing keys and values.
func NewStatic(seqs map[string]string) *Static {
	s := &Static{seqs: make(map[string]string, len(seqs))}
	for id, seq := range seqs {
		s.seqs[protein.NormalizeAccession(id)] = protein.NormalizeSequence(seq)
	}
	return s
}

// LoadFASTA builds a Static from a FASTA stream.  Records without an
// accession are skipped.
func LoadFASTA(r io.Reader) (*Static, error) {
	recs, err := protein.ParseFASTA(r)
	if err != nil {
		return nil, err
	}
	seqs := make(map[string]string, len(recs))
	for _, rec := range recs {
		if rec.Accession == "" || rec.Sequence == "" {
			continue
		}
		seqs[rec.Accession] = rec.Sequence
	}
	return NewStatic(seqs), nil
}

// LoadFASTAFile is LoadFASTA over a file.
func LoadFASTAFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "open sequences file").WithDetail(path)
	}
	defer f.Close()
	return LoadFASTA(f)
}

func (s *Static) Resolve(ctx context.Context, id protein.Accession) (protein.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seq, ok := s.seqs[protein.NormalizeAccession(id)]
	if !ok {
		return "", errors.New(errors.ErrCodeSequenceNotFound, "accession not found").WithDetail(id)
	}
	return seq, nil
}

// Accessions lists the table keys in sorted order.
func (s *Static) Accessions() []string {
	out := make([]string, 0, len(s.seqs))
	for id := range s.seqs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Static) Len() int { return len(s.seqs) }

// ─────────────────────────────────────────────────────────────────────────────
// Chain
// ─────────────────────────────────────────────────────────────────────────────

// Chain tries each resolver in order and returns the first success.  Not
// found from every member is reported as not found; otherwise the last
// other error wins.
type Chain []protein.SequenceResolver

func (c Chain) Resolve(ctx context.Context, id protein.Accession) (protein.Sequence, error) {
	var lastErr error
	for _, r := range c {
		seq, err := r.Resolve(ctx, id)
		if err == nil {
			return seq, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if lastErr == nil || !errors.IsCode(err, errors.ErrCodeSequenceNotFound) {
			lastErr = err
		}
	}
	if lastErr == nil {
		return "", errors.New(errors.ErrCodeSequenceNotFound, "no resolvers configured").WithDetail(id)
	}
	return "", lastErr
}

// ─────────────────────────────────────────────────────────────────────────────
// Caching
// ─────────────────────────────────────────────────────────────────────────────

// SequenceCache is a shared second-level store for resolved sequences,
// e.g. Redis.  Its failures never fail a resolution.
type SequenceCache interface {
	GetSequence(ctx context.Context, id string) (string, bool, error)
	PutSequence(ctx context.Context, id, seq string) error
}

// CachingOption customizes Caching.
type CachingOption func(*Caching)

// WithSharedCache consults sc after the in-process map and before the
// wrapped resolver.
func WithSharedCache(sc SequenceCache, logger logging.Logger) CachingOption {
	return func(c *Caching) {
		c.shared = sc
		if logger != nil {
			c.logger = logger
		}
	}
}

// Caching memoizes successful resolutions and collapses concurrent lookups
// of one accession into a single upstream call.  Failures are not cached.
type Caching struct {
	next   protein.SequenceResolver
	shared SequenceCache
	logger logging.Logger
	cache  sync.Map
	group  singleflight.Group
}

// NewCaching wraps next.
func NewCaching(next protein.SequenceResolver, opts ...CachingOption) *Caching {
	c := &Caching{next: next, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Caching) Resolve(ctx context.Context, id protein.Accession) (protein.Sequence, error) {
	id = protein.NormalizeAccession(id)
	if v, ok := c.cache.Load(id); ok {
		return v.(string), nil
	}
	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		if v, ok := c.cache.Load(id); ok {
			return v, nil
		}
		if c.shared != nil {
			seq, ok, err := c.shared.GetSequence(ctx, id)
			if err != nil {
				c.logger.Warn("shared sequence cache read failed", logging.Accession(id), logging.Err(err))
			} else if ok {
				c.cache.Store(id, seq)
				return seq, nil
			}
		}
		seq, err := c.next.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.Store(id, seq)
		if c.shared != nil {
			if err := c.shared.PutSequence(ctx, id, seq); err != nil {
				c.logger.Warn("shared sequence cache write failed", logging.Accession(id), logging.Err(err))
			}
		}
		return seq, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Forget drops a memoized entry.
func (c *Caching) Forget(id protein.Accession) {
	c.cache.Delete(protein.NormalizeAccession(id))
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

// BatchResult partitions a batch resolution.
type BatchResult struct {
	Resolved   map[string]string
	Unresolved map[string]error
}

// Batch resolves ids concurrently with at most concurrency calls in flight.
// Per-protein failures are collected in Unresolved and never fail the
// batch; only context cancellation does.
func Batch(ctx context.Context, r protein.SequenceResolver, ids []string, concurrency int, logger logging.Logger) (*BatchResult, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	res := &BatchResult{Resolved: make(map[string]string), Unresolved: make(map[string]error)}
	var mu sync.Mutex

	seen := make(map[string]struct{}, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		id := id
		g.Go(func() error {
			seq, err := r.Resolve(gctx, id)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Unresolved[id] = err
				return nil
			}
			res.Resolved[id] = seq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if n := len(res.Unresolved); n > 0 {
		logger.Warn("proteins left unresolved",
			logging.Int("unresolved", n), logging.Int("resolved", len(res.Resolved)))
	}
	return res, nil
}

//Personal.AI order the ending
