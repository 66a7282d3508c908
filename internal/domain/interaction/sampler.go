package interaction

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// NegativeSampler draws synthetic non-interacting pairs from the proteins
// that have a resolvable sequence.
//
// Sampled pairs are never self-pairs, never collide with a positive pair
// (unordered) and never repeat.  The result depends only on the positive
// set, the universe, Ratio and Seed.  Sampled negatives may in reality
// interact; that label noise is accepted.
type NegativeSampler struct {
	Ratio float64
	Seed  int64
}

// NewNegativeSampler validates ratio.
func NewNegativeSampler(ratio float64, seed int64) (*NegativeSampler, error) {
	if ratio < 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, errors.InvalidParam("negative sampling ratio must be a finite value >= 0")
	}
	return &NegativeSampler{Ratio: ratio, Seed: seed}, nil
}

// Required is floor(Ratio × distinct positives).
func (s *NegativeSampler) Required(positives int) int {
	return int(math.Floor(s.Ratio * float64(positives)))
}

// Capacity is the number of distinct non-self unordered pairs over universe
// that are not already positive.
func Capacity(universe []string, positives []Pair) int {
	ids := uniqueSorted(universe)
	n := len(ids)
	return n*(n-1)/2 - Usable(ids, positives)
}

// Usable counts the distinct non-self positives with both proteins in
// universe, i.e. the positives that survive into the dataset.
func Usable(universe []string, positives []Pair) int {
	in := make(map[string]struct{}, len(universe))
	for _, id := range universe {
		in[id] = struct{}{}
	}
	taken := 0
	seen := make(map[PairKey]struct{}, len(positives))
	for _, p := range positives {
		k := p.Key()
		if k.IsSelf() {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		_, okA := in[k.A]
		_, okB := in[k.B]
		if okA && okB {
			taken++
		}
	}
	return taken
}

// Sample returns floor(Ratio × usable positives) negatives or an
// ErrCodeInsufficientData error when the candidate space is too small.
// Self-pairs and positives with a protein outside universe do not count.
func (s *NegativeSampler) Sample(positives []Pair, universe []string) ([]Pair, error) {
	if s.Ratio < 0 {
		return nil, errors.InvalidParam("negative sampling ratio must be >= 0")
	}
	pos := make(map[PairKey]struct{}, len(positives))
	for _, p := range positives {
		pos[p.Key()] = struct{}{}
	}
	ids := uniqueSorted(universe)
	usable := Usable(ids, positives)
	required := s.Required(usable)
	if required == 0 {
		return []Pair{}, nil
	}

	capacity := len(ids)*(len(ids)-1)/2 - usable
	if required > capacity {
		return nil, errors.InsufficientData("not enough unpaired proteins to satisfy the negative ratio").
			WithDetail(fmt.Sprintf("required=%d capacity=%d universe=%d", required, capacity, len(ids)))
	}

	rng := rand.New(rand.NewSource(s.Seed))
	chosen := make(map[PairKey]struct{}, required)
	out := make([]Pair, 0, required)

	// Rejection sampling while the candidate space is sparse.
	if 2*required <= capacity {
		budget := 20 * required
		if budget < 1000 {
			budget = 1000
		}
		n := len(ids)
		for attempts := 0; attempts < budget && len(out) < required; attempts++ {
			i, j := rng.Intn(n), rng.Intn(n)
			if i == j {
				continue
			}
			k := NewPairKey(ids[i], ids[j])
			if _, ok := pos[k]; ok {
				continue
			}
			if _, ok := chosen[k]; ok {
				continue
			}
			chosen[k] = struct{}{}
			out = append(out, Synthetic(k.A, k.B))
		}
		if len(out) == required {
			return out, nil
		}
	}

	// Dense space or budget exhausted: enumerate what is left and shuffle.
	var rest []PairKey
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			k := PairKey{A: ids[i], B: ids[j]}
			if _, ok := pos[k]; ok {
				continue
			}
			if _, ok := chosen[k]; ok {
				continue
			}
			rest = append(rest, k)
		}
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	for _, k := range rest[:required-len(out)] {
		out = append(out, Synthetic(k.A, k.B))
	}
	return out, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

//Personal.AI order the ending
