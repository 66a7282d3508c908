package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func TestPairKey_Unordered(t *testing.T) {
	assert.Equal(t, NewPairKey("P2", "P1"), NewPairKey("P1", "P2"))
	assert.Equal(t, "P1|P2", NewPairKey("P2", "P1").String())
	assert.True(t, NewPairKey("P1", "P1").IsSelf())
	assert.Equal(t, Observed("B", "A").Key(), Synthetic("A", "B").Key())
}

func TestLabelAndOrigin(t *testing.T) {
	assert.Equal(t, "positive", Positive.String())
	assert.Equal(t, "negative", Negative.String())
	assert.Equal(t, float32(1), Positive.Float())
	assert.Equal(t, "observed", Observed("a", "b").Origin.String())
	assert.Equal(t, "synthetic", Synthetic("a", "b").Origin.String())
}

func TestLabeledSet(t *testing.T) {
	s := NewLabeledSet()
	require.NoError(t, s.Add(Observed("P1", "P2")))
	require.NoError(t, s.Add(Observed("P2", "P1")))
	require.NoError(t, s.Add(Synthetic("P1", "P3")))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Count(Positive))
	assert.True(t, s.Contains(NewPairKey("P3", "P1")))

	err := s.Add(Synthetic("P2", "P1"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLabelConflict))

	p, ok := s.Get(NewPairKey("P1", "P2"))
	require.True(t, ok)
	assert.Equal(t, Positive, p.Label)
}

func TestDedupe(t *testing.T) {
	out, err := Dedupe([]Pair{Observed("A", "B"), Observed("B", "A"), Observed("A", "C")})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = Dedupe([]Pair{Observed("A", "B"), Synthetic("B", "A")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeLabelConflict))
}

func TestProteins(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, Proteins([]Pair{Observed("C", "A"), Observed("A", "B")}))
}

//Personal.AI order the ending
