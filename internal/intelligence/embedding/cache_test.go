package embedding

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const testDim = 16

// countingEncoder records how many sequences it has encoded.
type countingEncoder struct {
	inner *ResidueEncoder
	seqs  int32
}

func (c *countingEncoder) Encode(ctx context.Context, batch [][]int) ([][][]float32, error) {
	atomic.AddInt32(&c.seqs, int32(len(batch)))
	return c.inner.Encode(ctx, batch)
}
func (c *countingEncoder) Dim() int     { return c.inner.Dim() }
func (c *countingEncoder) Name() string { return "counting" }

func newCountingEncoder(t *testing.T) *countingEncoder {
	enc, err := NewResidueEncoder(SeededWeights(testDim, 2, 11))
	require.NoError(t, err)
	return &countingEncoder{inner: enc}
}

type CacheSuite struct {
	suite.Suite
	dir     string
	enc     *countingEncoder
	metrics *common.InMemoryPPIMetrics
}

func (s *CacheSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.enc = newCountingEncoder(s.T())
	s.metrics = common.NewInMemoryPPIMetrics()
}

func (s *CacheSuite) newCache() *Cache {
	artifacts, err := local.NewStore(s.dir, nil)
	s.Require().NoError(err)
	store := NewMemoryStore(artifacts, "cache.pb")
	comp := NewComputer(s.enc, ComputerConfig{MaxLength: 64, BatchSize: 2, Workers: 2}, nil, s.metrics)
	return NewCache(store, comp, CacheConfig{}, nil, s.metrics)
}

func (s *CacheSuite) TestGetOrCompute_MissesThenHits() {
	ctx := context.Background()
	c := s.newCache()
	items := []Item{{"P1", "MKVLA"}, {"P2", "DDEEK"}, {"P3", "GGGG"}, {"P1", "MKVLA"}}

	vecs, failed, err := c.GetOrCompute(ctx, items)
	s.Require().NoError(err)
	s.Empty(failed)
	s.Len(vecs, 3)
	s.Equal(int32(3), atomic.LoadInt32(&s.enc.seqs))

	again, _, err := c.GetOrCompute(ctx, items)
	s.Require().NoError(err)
	s.Equal(vecs, again)
	s.Equal(int32(3), atomic.LoadInt32(&s.enc.seqs), "warm cache must not recompute")

	stats := s.metrics.GetCurrentStats()
	s.Equal(int64(3), stats.CacheHits)
	s.Equal(int64(3), stats.CacheMisses)
}

func (s *CacheSuite) TestGetOrCompute_ExcludesInvalidSequences() {
	c := s.newCache()
	vecs, failed, err := c.GetOrCompute(context.Background(), []Item{{"OK", "MKV"}, {"BAD", "MK V"}, {"EMPTY", ""}})
	s.Require().NoError(err)
	s.Contains(vecs, "OK")
	s.NotContains(vecs, "BAD")
	s.True(errors.IsCode(failed["BAD"], errors.ErrCodeEmbeddingCompute))
	s.Contains(failed, "EMPTY")

	n, _ := c.Len(context.Background())
	s.Equal(1, n)
}

func (s *CacheSuite) TestFixedDimensionRegardlessOfLength() {
	c := s.newCache()
	vecs, _, err := c.GetOrCompute(context.Background(), []Item{
		{"short", "M"},
		{"mid", strings.Repeat("MKV", 10)},
		{"long", strings.Repeat("ACDEFGHIKL", 20)}, // truncated to 64
	})
	s.Require().NoError(err)
	for id, v := range vecs {
		s.Len(v, testDim, id)
	}
}

func (s *CacheSuite) TestColdAndWarmVectorsMatch() {
	ctx := context.Background()
	cold := s.newCache()
	v1, err := cold.Embed(ctx, Item{"P1", "MKTAYIAKQR"})
	s.Require().NoError(err)
	s.Require().NoError(cold.Persist(ctx))

	fresh := s.newCache()
	s.Require().NoError(fresh.Load(ctx, false))
	v2, ok, err := fresh.Get(ctx, "P1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(v1, v2)
	s.Equal(testDim, fresh.Dim())

	// Recomputing without the cache gives the same vector within tolerance.
	res, err := NewComputer(s.enc, ComputerConfig{MaxLength: 64}, nil, nil).Compute(ctx, []Item{{"P1", "MKTAYIAKQR"}})
	s.Require().NoError(err)
	s.True(vectorsEqual(v1, res.Vectors["P1"], 1e-6))
}

func (s *CacheSuite) TestRebuildStartsEmpty() {
	ctx := context.Background()
	c := s.newCache()
	_, err := c.Embed(ctx, Item{"P1", "MKV"})
	s.Require().NoError(err)
	s.Require().NoError(c.Persist(ctx))

	rebuilt := s.newCache()
	s.Require().NoError(rebuilt.Load(ctx, true))
	n, _ := rebuilt.Len(ctx)
	s.Zero(n)
}

func (s *CacheSuite) TestPutIsAppendOnlyAndDimGuarded() {
	ctx := context.Background()
	c := s.newCache()
	s.Require().NoError(c.Put(ctx, "P1", []float32{1, 2, 3}))
	s.Require().NoError(c.Put(ctx, "P1", []float32{1, 2, 3}))
	s.Require().NoError(c.Put(ctx, "P1", []float32{9, 9, 9}))
	v, _, _ := c.Get(ctx, "P1")
	s.Equal([]float32{1, 2, 3}, v)

	err := c.Put(ctx, "P2", []float32{1, 2})
	s.True(errors.IsCode(err, errors.ErrCodeEmbeddingDimMismatch))
	s.Error(c.Put(ctx, "P3", nil))
}

func (s *CacheSuite) TestEmbed_CollapsesConcurrentMisses() {
	c := s.newCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Embed(context.Background(), Item{"P1", "MKTAYIAKQR"})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.LessOrEqual(atomic.LoadInt32(&s.enc.seqs), int32(2))
}

func (s *CacheSuite) TestReadOnlyCache() {
	c := NewCache(NewMemoryStore(nil, ""), nil, CacheConfig{Dim: 4}, nil, nil)
	_, err := c.Embed(context.Background(), Item{"P1", "MKV"})
	s.True(errors.IsCode(err, errors.ErrCodeEmbeddingCompute))
	_, failed, err := c.GetOrCompute(context.Background(), []Item{{"P1", "MKV"}, {"P2", "MKV"}})
	s.Require().NoError(err)
	s.Len(failed, 2)
	s.Equal(4, c.Dim())
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func TestComputer_MeanPoolIgnoresPadding(t *testing.T) {
	rep := [][]float32{{1, 2}, {3, 4}, {100, 100}}
	v := MeanPool(rep, []int{5, 6, PadToken}, 2)
	assert.Equal(t, Vector{2, 3}, v)
	assert.Equal(t, Vector{0, 0}, MeanPool(rep, []int{0, 0, 0}, 2))
}

func TestComputer_BatchedEqualsSingle(t *testing.T) {
	enc := newCountingEncoder(t)
	ctx := context.Background()
	items := []Item{{"a", "MK"}, {"b", "MKVLAGGDDE"}, {"c", "W"}}

	batched, err := NewComputer(enc, ComputerConfig{BatchSize: 3}, nil, nil).Compute(ctx, items)
	require.NoError(t, err)
	single := NewComputer(enc, ComputerConfig{BatchSize: 1}, nil, nil)
	for _, it := range items {
		r, err := single.Compute(ctx, []Item{it})
		require.NoError(t, err)
		for f := range r.Vectors[it.ID] {
			assert.InDelta(t, r.Vectors[it.ID][f], batched.Vectors[it.ID][f], 1e-6)
		}
	}
}

func TestComputer_RecordsBatchMetrics(t *testing.T) {
	m := common.NewInMemoryPPIMetrics()
	c := NewComputer(newCountingEncoder(t), ComputerConfig{BatchSize: 2, Workers: 1}, nil, m)
	res, err := c.Compute(context.Background(), []Item{{"a", "MK"}, {"b", "MK"}, {"c", "MK"}, {"d", "M?"}})
	require.NoError(t, err)
	assert.Len(t, res.Vectors, 3)
	assert.Len(t, res.Failed, 1)
	assert.Len(t, m.Batches, 2)
	assert.Equal(t, int64(3), m.GetCurrentStats().EmbeddedTotal)
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, [][]int) ([][][]float32, error) {
	return nil, assert.AnError
}
func (failingEncoder) Dim() int     { return 2 }
func (failingEncoder) Name() string { return "failing" }

func TestComputer_EncoderFailure(t *testing.T) {
	_, err := NewComputer(failingEncoder{}, ComputerConfig{}, nil, nil).Compute(context.Background(), []Item{{"a", "MK"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingCompute))
}

func TestSnapshotCodec(t *testing.T) {
	entries := map[string]Vector{"P2": {1, float32(math.Inf(1))}, "P1": {-0.5, 3}}
	data, err := EncodeSnapshot(2, entries)
	require.NoError(t, err)
	again, _ := EncodeSnapshot(2, entries)
	assert.Equal(t, data, again)

	dim, got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	assert.Equal(t, entries, got)

	_, _, err = DecodeSnapshot(data[:len(data)-2])
	assert.Error(t, err)
	_, _, err = DecodeSnapshot([]byte{0x10, 0x02})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	_, err = EncodeSnapshot(3, entries)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingDimMismatch))
}

func TestLRUStore(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore(nil, "")
	s, err := NewLRUStore(backend, 2)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", Vector{1}))
	require.NoError(t, s.Put(ctx, "a", Vector{2}))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Vector{1}, v)

	got, err := s.GetMany(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "memory", s.Name())

	same, err := NewLRUStore(backend, 0)
	require.NoError(t, err)
	assert.Same(t, backend, same)

	d, ok := dimOf(s)
	assert.True(t, ok)
	assert.Equal(t, 1, d)
}

//Personal.AI order the ending
