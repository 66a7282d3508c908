package interaction

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func universeOf(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%03d", i)
	}
	return ids
}

func chainPositives(ids []string) []Pair {
	var out []Pair
	for i := 0; i+1 < len(ids); i++ {
		out = append(out, Observed(ids[i], ids[i+1]))
	}
	return out
}

func assertValidNegatives(t *testing.T, positives, negatives []Pair) {
	t.Helper()
	pos := make(map[PairKey]bool)
	for _, p := range positives {
		pos[p.Key()] = true
	}
	seen := make(map[PairKey]bool)
	for _, n := range negatives {
		k := n.Key()
		assert.False(t, k.IsSelf(), "self pair %s", k)
		assert.False(t, pos[k], "negative %s collides with a positive", k)
		assert.False(t, seen[k], "duplicate negative %s", k)
		assert.Equal(t, Negative, n.Label)
		assert.Equal(t, OriginSynthetic, n.Origin)
		seen[k] = true
	}
}

func TestNewNegativeSampler_RejectsNegativeRatio(t *testing.T) {
	_, err := NewNegativeSampler(-0.5, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestNegativeSampler_Sparse(t *testing.T) {
	ids := universeOf(100)
	positives := chainPositives(ids)
	s, err := NewNegativeSampler(1.0, 42)
	require.NoError(t, err)

	neg, err := s.Sample(positives, ids)
	require.NoError(t, err)
	assert.Len(t, neg, len(positives))
	assertValidNegatives(t, positives, neg)
}

func TestNegativeSampler_Deterministic(t *testing.T) {
	ids := universeOf(30)
	positives := chainPositives(ids)
	s, _ := NewNegativeSampler(2.0, 7)

	a, err := s.Sample(positives, ids)
	require.NoError(t, err)
	shuffled := append([]string(nil), ids...)
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	b, err := s.Sample(positives, shuffled)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, _ := NewNegativeSampler(2.0, 8)
	c, err := other.Sample(positives, ids)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestNegativeSampler_DenseFallsBackToEnumeration(t *testing.T) {
	ids := universeOf(6) // 15 pairs
	positives := chainPositives(ids)
	require.Equal(t, 10, Capacity(ids, positives))

	s, _ := NewNegativeSampler(2.0, 3)
	neg, err := s.Sample(positives, ids)
	require.NoError(t, err)
	assert.Len(t, neg, 10)
	assertValidNegatives(t, positives, neg)
}

func TestNegativeSampler_Insufficient(t *testing.T) {
	ids := universeOf(4) // 6 pairs, 3 positive
	positives := chainPositives(ids)
	s, _ := NewNegativeSampler(1.5, 1)

	_, err := s.Sample(positives, ids)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))
}

func TestNegativeSampler_ZeroRatio(t *testing.T) {
	s, _ := NewNegativeSampler(0, 1)
	neg, err := s.Sample(chainPositives(universeOf(3)), universeOf(3))
	require.NoError(t, err)
	assert.Empty(t, neg)
}

func TestNegativeSampler_FloorAndDuplicatePositives(t *testing.T) {
	ids := universeOf(20)
	positives := []Pair{Observed(ids[0], ids[1]), Observed(ids[1], ids[0]), Observed(ids[2], ids[3])}
	s, _ := NewNegativeSampler(1.5, 9)
	neg, err := s.Sample(positives, ids)
	require.NoError(t, err)
	assert.Len(t, neg, 3) // floor(1.5 × 2 distinct)
}

func TestNegativeSampler_RatioCountsUsablePositivesOnly(t *testing.T) {
	ids := universeOf(20)
	positives := []Pair{
		Observed(ids[0], ids[1]),
		Observed(ids[2], ids[3]),
		Observed(ids[4], ids[4]),
		Observed(ids[5], "UNRESOLVED1"),
		Observed("UNRESOLVED2", ids[6]),
	}
	assert.Equal(t, 2, Usable(ids, positives))

	s, _ := NewNegativeSampler(2.0, 5)
	neg, err := s.Sample(positives, ids)
	require.NoError(t, err)
	assert.Len(t, neg, 4) // 2 × 2 usable, not 2 × 5
	assertValidNegatives(t, positives, neg)
}

func TestCapacity_IgnoresOutsideAndSelfPairs(t *testing.T) {
	ids := universeOf(4)
	positives := []Pair{Observed(ids[0], ids[1]), Observed(ids[0], "OUTSIDE"), Observed(ids[2], ids[2])}
	assert.Equal(t, 5, Capacity(append(ids, ids[0], ""), positives))
}

//Personal.AI order the ending
