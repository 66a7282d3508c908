package embedding

import (
	"context"
	"math"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Encoder produces per-position representations for a padded token batch.
// Every row of batch has the same length; PadToken marks padding.  The
// result is indexed [sequence][position][feature].
type Encoder interface {
	Encode(ctx context.Context, batch [][]int) ([][][]float32, error)
	Dim() int
	Name() string
}

// ResidueEncoder is the in-process encoder: a learned residue table
// followed by a depthwise windowed context mixing layer,
//
//	h_i = tanh(b + Σ_{o=-k..k} w_o ⊙ x_{i+o})
//
// where positions outside the sequence (or on padding) contribute nothing.
type ResidueEncoder struct {
	w *EncoderWeights
}

// NewResidueEncoder validates w.
func NewResidueEncoder(w *EncoderWeights) (*ResidueEncoder, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &ResidueEncoder{w: w}, nil
}

func (e *ResidueEncoder) Dim() int     { return e.w.Dim }
func (e *ResidueEncoder) Name() string { return "residue" }

// Weights exposes the loaded parameters.
func (e *ResidueEncoder) Weights() *EncoderWeights { return e.w }

func (e *ResidueEncoder) Encode(ctx context.Context, batch [][]int) ([][][]float32, error) {
	d, k := e.w.Dim, e.w.Window
	out := make([][][]float32, len(batch))
	for s, row := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		length := 0
		for length < len(row) && row[length] != PadToken {
			length++
		}
		for _, tok := range row[:length] {
			if tok <= 0 || tok >= e.w.Vocab {
				return nil, errors.EmbeddingCompute("token id outside the encoder vocabulary")
			}
		}

		rep := make([][]float32, len(row))
		acc := make([]float32, d)
		for i := range row {
			rep[i] = make([]float32, d)
			if i >= length {
				continue
			}
			copy(acc, e.w.Bias)
			for o := -k; o <= k; o++ {
				j := i + o
				if j < 0 || j >= length {
					continue
				}
				x := e.w.Table[row[j]*d : (row[j]+1)*d]
				kern := e.w.Kernel[(o+k)*d : (o+k+1)*d]
				for f := 0; f < d; f++ {
					acc[f] += kern[f] * x[f]
				}
			}
			for f := 0; f < d; f++ {
				rep[i][f] = float32(math.Tanh(float64(acc[f])))
			}
		}
		out[s] = rep
	}
	return out, nil
}

//Personal.AI order the ending
