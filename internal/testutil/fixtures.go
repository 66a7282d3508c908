package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/resolver"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
)

// CacheKey is where fixture caches persist their snapshot.
const CacheKey = "embeddings_cache.pb"

// Families is a toy interactome: every member of X interacts with every
// member of Y and no two members of the same family interact.  Sequences of
// one family share a residue composition so the pattern is learnable from
// embeddings alone.
type Families struct {
	X, Y      []string
	Sequences map[string]string
}

// CrossFamilies builds Families with n members per family.  Accessions are
// P1..Pn for X and Q1..Qn for Y.
func CrossFamilies(n int) Families {
	f := Families{Sequences: make(map[string]string, 2*n)}
	for i := 1; i <= n; i++ {
		p := accession("P", i)
		q := accession("Q", i)
		f.X = append(f.X, p)
		f.Y = append(f.Y, q)
		f.Sequences[p] = motif("ACDEG", i, 40)
		f.Sequences[q] = motif("WYFHK", i, 40)
	}
	return f
}

func accession(prefix string, i int) string { return prefix + strconv.Itoa(i) }

// motif repeats a rotation of base until length residues.
func motif(base string, shift, length int) string {
	r := base[shift%len(base):] + base[:shift%len(base)]
	var b strings.Builder
	for b.Len() < length {
		b.WriteString(r)
	}
	return b.String()[:length]
}

// Positives returns every cross-family pair.
func (f Families) Positives() []interaction.Pair {
	out := make([]interaction.Pair, 0, len(f.X)*len(f.Y))
	for _, a := range f.X {
		for _, b := range f.Y {
			out = append(out, interaction.Observed(a, b))
		}
	}
	return out
}

// Accessions lists every member, X first.
func (f Families) Accessions() []string {
	return append(append([]string(nil), f.X...), f.Y...)
}

// Resolver serves the fixture sequences.
func (f Families) Resolver() *resolver.Static {
	return resolver.NewStatic(f.Sequences)
}

// WriteFASTA writes the fixture sequences to dir/sequences.fasta in
// accession order and returns the path.
func (f Families) WriteFASTA(t testing.TB, dir string) string {
	t.Helper()
	ids := f.Accessions()
	sort.Strings(ids)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(">sp|" + id + "|" + id + "_FIXTURE\n" + f.Sequences[id] + "\n")
	}
	path := filepath.Join(dir, "sequences.fasta")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// WritePairsTSV writes pairs as a HINT-format file under dir.
func WritePairsTSV(t testing.TB, dir string, pairs []interaction.Pair) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Uniprot_A\tUniprot_B\tGene_A\tGene_B\n")
	for _, p := range pairs {
		b.WriteString(p.A + "\t" + p.B + "\t-\t-\n")
	}
	path := filepath.Join(dir, "pairs.tsv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// PairSource serves fixed positives.
type PairSource []interaction.Pair

func (PairSource) Name() string { return "fixture" }

func (s PairSource) LoadPairs(context.Context) ([]interaction.Pair, error) {
	return append([]interaction.Pair(nil), s...), nil
}

// Artifacts returns a filesystem artifact store rooted in a temp dir.
func Artifacts(t testing.TB) *local.Store {
	t.Helper()
	store, err := local.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

// NewCache builds an in-memory embedding cache snapshotting to artifacts,
// backed by a seeded residue encoder of width dim.
func NewCache(t testing.TB, artifacts *local.Store, dim int, metrics common.PPIMetrics) *embedding.Cache {
	t.Helper()
	enc, err := embedding.NewResidueEncoder(embedding.SeededWeights(dim, 1, 7))
	require.NoError(t, err)
	computer := embedding.NewComputer(enc, embedding.ComputerConfig{MaxLength: 128, BatchSize: 4, Workers: 2}, nil, metrics)
	return embedding.NewCache(embedding.NewMemoryStore(artifacts, CacheKey), computer, embedding.CacheConfig{Dim: dim}, nil, metrics)
}

// RandomCheckpoint is an untrained classifier over dim-wide embeddings.
func RandomCheckpoint(t testing.TB, id string, dim int) *ppinet.Checkpoint {
	t.Helper()
	cfg := ppinet.Config{InputDim: ppinet.SymmetricCombiner{}.Width(dim), HiddenDims: []int{4}, TypeClasses: len(ppinet.InteractionTypes)}
	net, err := ppinet.NewNetwork(cfg, 5)
	require.NoError(t, err)
	return &ppinet.Checkpoint{Network: net, Metadata: ppinet.Metadata{
		ModelID: id, Architecture: cfg.Architecture(), Combiner: "symmetric", EmbeddingDim: dim, Network: cfg,
	}}
}

//Personal.AI order the ending
