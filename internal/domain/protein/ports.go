package protein

import (
	"context"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
)

// SequenceResolver maps an accession to its sequence.  Implementations return
// an error coded ErrCodeSequenceNotFound when the accession is unknown and
// ErrCodeResolution for any other failure.
type SequenceResolver interface {
	Resolve(ctx context.Context, id Accession) (Sequence, error)
}

// SequenceResolverFunc adapts a function to SequenceResolver.
type SequenceResolverFunc func(ctx context.Context, id Accession) (Sequence, error)

func (f SequenceResolverFunc) Resolve(ctx context.Context, id Accession) (Sequence, error) {
	return f(ctx, id)
}

// PairSource yields observed (positive) interaction pairs.
type PairSource interface {
	Name() string
	LoadPairs(ctx context.Context) ([]interaction.Pair, error)
}

//Personal.AI order the ending
