package ppinet

import "math"

// Adam defaults.
const (
	DefaultBeta1   = 0.9
	DefaultBeta2   = 0.999
	DefaultEpsilon = 1e-8
)

// Adam keeps first and second moment estimates per parameter tensor.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	t int
	m [][]float32
	v [][]float32
}

// NewAdam sizes the moment buffers after params.
func NewAdam(params [][]float32, lr float64) *Adam {
	a := &Adam{LR: lr, Beta1: DefaultBeta1, Beta2: DefaultBeta2, Eps: DefaultEpsilon}
	for _, p := range params {
		a.m = append(a.m, make([]float32, len(p)))
		a.v = append(a.v, make([]float32, len(p)))
	}
	return a
}

// Step applies one bias-corrected update in place.
func (a *Adam) Step(params, grads [][]float32) {
	a.t++
	b1, b2 := a.Beta1, a.Beta2
	c1 := 1 - math.Pow(b1, float64(a.t))
	c2 := 1 - math.Pow(b2, float64(a.t))
	step := a.LR * math.Sqrt(c2) / c1
	for k, p := range params {
		g, m, v := grads[k], a.m[k], a.v[k]
		for i := range p {
			gi := float64(g[i])
			mi := b1*float64(m[i]) + (1-b1)*gi
			vi := b2*float64(v[i]) + (1-b2)*gi*gi
			m[i], v[i] = float32(mi), float32(vi)
			p[i] -= float32(step * mi / (math.Sqrt(vi) + a.Eps*math.Sqrt(c2)))
		}
	}
}

// Plateau halves (by Factor) the learning rate once the monitored loss has
// failed to improve for more than Patience epochs.
type Plateau struct {
	Patience int
	Factor   float64
	MinLR    float64

	best    float64
	bad     int
	started bool
}

// plateauThreshold is the relative improvement that resets the counter.
const plateauThreshold = 1e-4

// Step records loss and returns the learning rate to use next.
func (p *Plateau) Step(loss, lr float64) float64 {
	if !p.started || loss < p.best*(1-plateauThreshold) {
		p.best, p.bad, p.started = loss, 0, true
		return lr
	}
	p.bad++
	if p.bad > p.Patience {
		p.bad = 0
		return math.Max(lr*p.Factor, p.MinLR)
	}
	return lr
}

//Personal.AI order the ending
