package interaction

import (
	"math"
	"math/rand"
	"sort"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// EmbeddingLookup returns the cached embedding for a protein id.
type EmbeddingLookup interface {
	Lookup(id string) ([]float32, bool)
}

// LookupFunc adapts a function to EmbeddingLookup.
type LookupFunc func(id string) ([]float32, bool)

func (f LookupFunc) Lookup(id string) ([]float32, bool) { return f(id) }

// Example is a pair joined with both embeddings.  A and B alias the cache
// vectors; callers must not mutate them.
type Example struct {
	Key    PairKey
	A      []float32
	B      []float32
	Label  Label
	Origin Origin
}

// Dataset is the train/test partition of joined examples.
type Dataset struct {
	Train []Example
	Test  []Example
	Dim   int
}

// Report summarizes a Build.
type Report struct {
	Input          int      `json:"input"`
	Kept           int      `json:"kept"`
	Dropped        int      `json:"dropped"`
	Missing        []string `json:"missing,omitempty"`
	TrainPositives int      `json:"train_positives"`
	TrainNegatives int      `json:"train_negatives"`
	TestPositives  int      `json:"test_positives"`
	TestNegatives  int      `json:"test_negatives"`
}

// Builder joins pairs with embeddings and splits them.
type Builder struct {
	TestFraction float64
	Seed         int64
}

// NewBuilder validates the split fraction.
func NewBuilder(testFraction float64, seed int64) (*Builder, error) {
	if testFraction < 0 || testFraction >= 1 || math.IsNaN(testFraction) {
		return nil, errors.InvalidParam("test fraction must be in [0, 1)")
	}
	return &Builder{TestFraction: testFraction, Seed: seed}, nil
}

// Build deduplicates pairs, drops those lacking either embedding and splits
// the rest with a stratified seeded split.  Pairs labeled both ways fail
// with ErrCodeLabelConflict; vectors of differing width fail with
// ErrCodeEmbeddingDimMismatch.
func (b *Builder) Build(pairs []Pair, lookup EmbeddingLookup) (*Dataset, *Report, error) {
	unique, err := Dedupe(pairs)
	if err != nil {
		return nil, nil, err
	}
	rep := &Report{Input: len(unique)}
	missing := make(map[string]struct{})
	examples := make([]Example, 0, len(unique))
	dim := 0

	for _, p := range unique {
		va, okA := lookup.Lookup(p.A)
		vb, okB := lookup.Lookup(p.B)
		if !okA || len(va) == 0 {
			missing[p.A] = struct{}{}
		}
		if !okB || len(vb) == 0 {
			missing[p.B] = struct{}{}
		}
		if !okA || !okB || len(va) == 0 || len(vb) == 0 {
			rep.Dropped++
			continue
		}
		if dim == 0 {
			dim = len(va)
		}
		if len(va) != dim || len(vb) != dim {
			return nil, nil, errors.Newf(errors.ErrCodeEmbeddingDimMismatch,
				"pair %s: embedding widths %d/%d, expected %d", p.Key(), len(va), len(vb), dim)
		}
		examples = append(examples, Example{Key: p.Key(), A: va, B: vb, Label: p.Label, Origin: p.Origin})
	}
	rep.Kept = len(examples)
	for id := range missing {
		rep.Missing = append(rep.Missing, id)
	}
	sort.Strings(rep.Missing)

	train, test := StratifiedSplit(examples, b.TestFraction, b.Seed)
	rep.TrainPositives, rep.TrainNegatives = countLabels(train)
	rep.TestPositives, rep.TestNegatives = countLabels(test)
	return &Dataset{Train: train, Test: test, Dim: dim}, rep, nil
}

// StratifiedSplit shuffles each label class with the seeded RNG and moves
// round(fraction × class size) of it to test.  A class with at least two
// members contributes at least one example to each side when fraction > 0.
// The result does not depend on the order of examples.
func StratifiedSplit(examples []Example, fraction float64, seed int64) (train, test []Example) {
	var pos, neg []Example
	for _, e := range examples {
		if e.Label == Positive {
			pos = append(pos, e)
		} else {
			neg = append(neg, e)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	for _, class := range [][]Example{pos, neg} {
		sort.Slice(class, func(i, j int) bool { return class[i].Key.String() < class[j].Key.String() })
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		n := testCount(len(class), fraction)
		test = append(test, class[:n]...)
		train = append(train, class[n:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test
}

func testCount(size int, fraction float64) int {
	if size == 0 || fraction <= 0 {
		return 0
	}
	n := int(math.Round(fraction * float64(size)))
	if size >= 2 {
		if n < 1 {
			n = 1
		}
		if n > size-1 {
			n = size - 1
		}
		return n
	}
	return 0
}

func countLabels(es []Example) (pos, neg int) {
	for _, e := range es {
		if e.Label == Positive {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// ─────────────────────────────────────────────────────────────────────────────
// Feature matrices
// ─────────────────────────────────────────────────────────────────────────────

// Combiner turns an embedding pair into one feature row.
type Combiner interface {
	Width(dim int) int
	Combine(dst, a, b []float32)
}

// Features builds the row-major feature matrix and label vector for
// examples.
func Features(examples []Example, dim int, c Combiner) (x []float32, y []float32) {
	w := c.Width(dim)
	x = make([]float32, len(examples)*w)
	y = make([]float32, len(examples))
	for i, e := range examples {
		c.Combine(x[i*w:(i+1)*w], e.A, e.B)
		y[i] = e.Label.Float()
	}
	return x, y
}

// Features is the dataset-bound form of the package function for one
// partition.
func (d *Dataset) Features(part []Example, c Combiner) (x []float32, y []float32) {
	return Features(part, d.Dim, c)
}

//Personal.AI order the ending
