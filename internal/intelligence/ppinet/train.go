package ppinet

import (
	"context"
	"math/rand"
)

// Stepper trains a network one mini-batch at a time.
type Stepper struct {
	net   *Network
	opt   *Adam
	rng   *rand.Rand
	grads [][]float32
}

// NewStepper binds an Adam optimizer to net.  seed drives dropout masks.
func NewStepper(net *Network, lr float64, seed int64) *Stepper {
	params := net.params()
	grads := make([][]float32, len(params))
	for i, p := range params {
		grads[i] = make([]float32, len(p))
	}
	return &Stepper{
		net:   net,
		opt:   NewAdam(params, lr),
		rng:   rand.New(rand.NewSource(seed)),
		grads: grads,
	}
}

// LearningRate returns the optimizer's current rate.
func (s *Stepper) LearningRate() float64 { return s.opt.LR }

// SetLearningRate changes the rate for subsequent steps.
func (s *Stepper) SetLearningRate(lr float64) { s.opt.LR = lr }

// Step runs forward and backward passes over the given rows of x and applies
// one optimizer update.  It returns the mean BCE loss and the per-row
// probabilities computed with dropout active.
func (s *Stepper) Step(x, y []float32, rows []int) (float64, []float64) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, g := range s.grads {
		clear(g)
	}
	n := s.net
	width := n.cfg.InputDim
	keep := 1 - n.cfg.Dropout
	scale := float32(1)
	if keep < 1 {
		scale = float32(1 / keep)
	}

	L := len(n.hidden)
	acts := make([][]float32, L+1)
	derivs := make([][]float32, L)
	for l, d := range n.hidden {
		acts[l+1] = make([]float32, d.Out)
		derivs[l] = make([]float32, d.Out)
	}
	probs := make([]float64, len(rows))
	var loss float64

	for k, r := range rows {
		acts[0] = x[r*width : (r+1)*width]
		for l, d := range n.hidden {
			a, dv := acts[l+1], derivs[l]
			d.forward(a, acts[l])
			for i, z := range a {
				switch {
				case z <= 0:
					a[i], dv[i] = 0, 0
				case keep < 1 && s.rng.Float64() >= keep:
					a[i], dv[i] = 0, 0
				default:
					a[i], dv[i] = z*scale, scale
				}
			}
		}
		logit := make([]float32, 1)
		n.head.forward(logit, acts[L])
		z := float64(logit[0])
		target := float64(y[r])
		p := sigmoid(z)
		probs[k] = p
		loss += bceWithLogit(z, target)

		// dL/dz for sigmoid + BCE.
		dz := float32(p - target)
		hw, hb := s.grads[2*L], s.grads[2*L+1]
		delta := make([]float32, n.head.In)
		for i, a := range acts[L] {
			hw[i] += dz * a
			if L > 0 {
				delta[i] = dz * n.head.W[i] * derivs[L-1][i]
			}
		}
		hb[0] += dz

		for l := L - 1; l >= 0; l-- {
			d := n.hidden[l]
			gw, gb := s.grads[2*l], s.grads[2*l+1]
			in := acts[l]
			var prev []float32
			if l > 0 {
				prev = make([]float32, d.In)
			}
			for o := 0; o < d.Out; o++ {
				g := delta[o]
				if g == 0 {
					continue
				}
				gb[o] += g
				row := gw[o*d.In : (o+1)*d.In]
				for i, a := range in {
					row[i] += g * a
				}
				if prev != nil {
					wrow := d.W[o*d.In : (o+1)*d.In]
					for i := range prev {
						prev[i] += g * wrow[i]
					}
				}
			}
			if prev != nil {
				for i := range prev {
					prev[i] *= derivs[l-1][i]
				}
			}
			delta = prev
		}
	}

	inv := float32(1 / float64(len(rows)))
	for _, g := range s.grads {
		for i := range g {
			g[i] *= inv
		}
	}
	s.opt.Step(n.params(), s.grads)
	return loss / float64(len(rows)), probs
}

// Batches shuffles row indices with rng and cuts them into mini-batches.
func Batches(rows, size int, rng *rand.Rand) [][]int {
	idx := rng.Perm(rows)
	if size <= 0 {
		size = rows
	}
	var out [][]int
	for start := 0; start < rows; start += size {
		end := min(start+size, rows)
		out = append(out, idx[start:end])
	}
	return out
}

// EpochResult summarizes one pass over the training rows.
type EpochResult struct {
	Loss   float64
	Probs  []float64
	Labels []float32
}

// RunEpoch steps through every mini-batch, checking ctx between batches.
func (s *Stepper) RunEpoch(ctx context.Context, x, y []float32, rows, batchSize int, rng *rand.Rand) (*EpochResult, error) {
	res := &EpochResult{Probs: make([]float64, 0, rows), Labels: make([]float32, 0, rows)}
	var total float64
	for _, batch := range Batches(rows, batchSize, rng) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loss, probs := s.Step(x, y, batch)
		total += loss * float64(len(batch))
		res.Probs = append(res.Probs, probs...)
		for _, r := range batch {
			res.Labels = append(res.Labels, y[r])
		}
	}
	if rows > 0 {
		res.Loss = total / float64(rows)
	}
	return res, nil
}

//Personal.AI order the ending
