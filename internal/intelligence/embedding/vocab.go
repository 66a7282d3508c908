// Package embedding turns amino-acid sequences into fixed-width vectors and
// keeps them in a durable, append-only cache.
package embedding

import (
	"fmt"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Vector is one embedding.
type Vector = []float32

// PadToken marks padding positions in an encoder batch.
const PadToken = 0

// Alphabet lists the accepted residues: the 20 canonical amino acids plus
// the ambiguity and rare codes X, B, U, Z and O.
const Alphabet = "ACDEFGHIKLMNPQRSTVWYXBUZO"

// VocabSize counts PadToken plus every residue.
const VocabSize = len(Alphabet) + 1

var tokenOf [256]int

func init() {
	for i := range tokenOf {
		tokenOf[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		c := Alphabet[i]
		tokenOf[c] = i + 1
		tokenOf[c+('a'-'A')] = i + 1
	}
}

// Tokenize maps seq to token ids, truncating to maxLen residues when maxLen
// is positive.  Any symbol outside the alphabet, whitespace included, is an
// ErrCodeEmbeddingCompute error naming the first offending position.
func Tokenize(seq string, maxLen int) ([]int, error) {
	if seq == "" {
		return nil, errors.EmbeddingCompute("empty sequence")
	}
	n := len(seq)
	if maxLen > 0 && n > maxLen {
		n = maxLen
	}
	out := make([]int, n)
	// Validate the whole sequence, not just the retained prefix.
	for i := 0; i < len(seq); i++ {
		tok := tokenOf[seq[i]]
		if tok < 0 {
			return nil, errors.EmbeddingCompute("sequence contains a symbol outside the residue alphabet").
				WithDetail(fmt.Sprintf("position=%d symbol=%q", i, seq[i]))
		}
		if i < n {
			out[i] = tok
		}
	}
	return out, nil
}

// Detokenize is the inverse of Tokenize; PadToken positions are skipped.
func Detokenize(tokens []int) string {
	buf := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		if t > 0 && t < VocabSize {
			buf = append(buf, Alphabet[t-1])
		}
	}
	return string(buf)
}

//Personal.AI order the ending
