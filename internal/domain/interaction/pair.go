// Package interaction holds the labeled protein pairs a classifier is trained
// on, the synthetic negative sampler, and the dataset builder that joins pairs
// with embeddings and splits them into train and test partitions.
package interaction

import (
	"sort"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Label / Origin
// ─────────────────────────────────────────────────────────────────────────────

// Label is the binary training target.
type Label int8

const (
	Negative Label = 0
	Positive Label = 1
)

func (l Label) String() string {
	if l == Positive {
		return "positive"
	}
	return "negative"
}

// Float is the BCE target value.
func (l Label) Float() float32 { return float32(l) }

// Origin records where a pair came from.
type Origin int8

const (
	OriginObserved Origin = iota
	OriginSynthetic
)

func (o Origin) String() string {
	if o == OriginSynthetic {
		return "synthetic"
	}
	return "observed"
}

// ─────────────────────────────────────────────────────────────────────────────
// PairKey / Pair
// ─────────────────────────────────────────────────────────────────────────────

// PairKey is the canonical unordered identity of a pair: A <= B.
type PairKey struct {
	A string
	B string
}

// NewPairKey orders a and b.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

func (k PairKey) String() string { return k.A + "|" + k.B }

// IsSelf reports whether both members are the same protein.
func (k PairKey) IsSelf() bool { return k.A == k.B }

// Pair is a labeled, unordered protein pair.
type Pair struct {
	A      string `json:"protein_a"`
	B      string `json:"protein_b"`
	Label  Label  `json:"label"`
	Origin Origin `json:"origin"`
}

// Observed builds a positive pair from an interaction database.
func Observed(a, b string) Pair {
	return Pair{A: a, B: b, Label: Positive, Origin: OriginObserved}
}

// Synthetic builds a sampled negative pair.
func Synthetic(a, b string) Pair {
	return Pair{A: a, B: b, Label: Negative, Origin: OriginSynthetic}
}

func (p Pair) Key() PairKey { return NewPairKey(p.A, p.B) }

// ─────────────────────────────────────────────────────────────────────────────
// LabeledSet
// ─────────────────────────────────────────────────────────────────────────────

// LabeledSet is a deduplicated pair collection keyed by unordered identity.
// No key carries both labels.
type LabeledSet struct {
	byKey map[PairKey]Pair
	order []PairKey
}

// NewLabeledSet returns an empty set.
func NewLabeledSet() *LabeledSet {
	return &LabeledSet{byKey: make(map[PairKey]Pair)}
}

// Add inserts p.  Re-adding a key with the same label is a no-op; a different
// label is ErrCodeLabelConflict.
func (s *LabeledSet) Add(p Pair) error {
	k := p.Key()
	if prev, ok := s.byKey[k]; ok {
		if prev.Label != p.Label {
			return errors.Newf(errors.ErrCodeLabelConflict,
				"pair %s labeled both %s and %s", k, prev.Label, p.Label)
		}
		return nil
	}
	s.byKey[k] = p
	s.order = append(s.order, k)
	return nil
}

// AddAll inserts every pair, stopping at the first conflict.
func (s *LabeledSet) AddAll(pairs []Pair) error {
	for _, p := range pairs {
		if err := s.Add(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *LabeledSet) Contains(k PairKey) bool {
	_, ok := s.byKey[k]
	return ok
}

func (s *LabeledSet) Get(k PairKey) (Pair, bool) {
	p, ok := s.byKey[k]
	return p, ok
}

func (s *LabeledSet) Len() int { return len(s.order) }

// Pairs returns pairs in insertion order.
func (s *LabeledSet) Pairs() []Pair {
	out := make([]Pair, len(s.order))
	for i, k := range s.order {
		out[i] = s.byKey[k]
	}
	return out
}

// Count returns how many pairs carry label l.
func (s *LabeledSet) Count(l Label) int {
	n := 0
	for _, p := range s.byKey {
		if p.Label == l {
			n++
		}
	}
	return n
}

// Dedupe collapses pairs sharing an unordered key and fails on label
// conflicts.
func Dedupe(pairs []Pair) ([]Pair, error) {
	set := NewLabeledSet()
	if err := set.AddAll(pairs); err != nil {
		return nil, err
	}
	return set.Pairs(), nil
}

// Proteins returns the sorted distinct protein ids referenced by pairs.
func Proteins(pairs []Pair) []string {
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		seen[p.A] = struct{}{}
		seen[p.B] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

//Personal.AI order the ending
