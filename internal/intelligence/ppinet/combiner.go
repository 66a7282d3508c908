package ppinet

import "math"

// SymmetricCombiner builds [a+b, a⊙b, |a−b|] so swapping the two proteins
// yields identical features.
type SymmetricCombiner struct{}

// Name identifies the layout in checkpoint metadata.
func (SymmetricCombiner) Name() string { return "symmetric" }

func (SymmetricCombiner) Width(dim int) int { return 3 * dim }

func (SymmetricCombiner) Combine(dst, a, b []float32) {
	d := len(a)
	for i := 0; i < d; i++ {
		dst[i] = a[i] + b[i]
		dst[d+i] = a[i] * b[i]
		dst[2*d+i] = float32(math.Abs(float64(a[i] - b[i])))
	}
}

//Personal.AI order the ending
