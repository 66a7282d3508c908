package ppinet

import (
	"math"
	"math/rand"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Dense is a fully connected layer; W is row-major [Out × In].
type Dense struct {
	In  int
	Out int
	W   []float32
	B   []float32
}

// newDense draws W from He-uniform U(−√(6/in), √(6/in)); biases start at 0.
func newDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{In: in, Out: out, W: make([]float32, in*out), B: make([]float32, out)}
	limit := math.Sqrt(6 / float64(in))
	for i := range d.W {
		d.W[i] = float32((rng.Float64()*2 - 1) * limit)
	}
	return d
}

func (d *Dense) forward(dst, x []float32) {
	for o := 0; o < d.Out; o++ {
		row := d.W[o*d.In : (o+1)*d.In]
		var s float32
		for i, v := range x {
			s += row[i] * v
		}
		dst[o] = s + d.B[o]
	}
}

// Network is the pair classifier.
type Network struct {
	cfg      Config
	hidden   []*Dense
	head     *Dense
	typeHead *Dense
}

// NewNetwork initializes every layer deterministically from seed.
func NewNetwork(cfg Config, seed int64) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	n := &Network{cfg: cfg}
	in := cfg.InputDim
	for _, h := range cfg.HiddenDims {
		n.hidden = append(n.hidden, newDense(in, h, rng))
		in = h
	}
	n.head = newDense(in, 1, rng)
	if cfg.TypeClasses > 0 {
		n.typeHead = newDense(in, cfg.TypeClasses, rng)
	}
	return n, nil
}

// Config returns the shape the network was built with.
func (n *Network) Config() Config { return n.cfg }

// Layers lists hidden layers, the binary head, then the type head if any.
func (n *Network) Layers() []*Dense {
	out := append([]*Dense(nil), n.hidden...)
	out = append(out, n.head)
	if n.typeHead != nil {
		out = append(out, n.typeHead)
	}
	return out
}

// fromLayers rebuilds a network from decoded layers, checking shapes
// against cfg.
func fromLayers(cfg Config, layers []*Dense) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ModelLoad("checkpoint config invalid", err)
	}
	want := len(cfg.HiddenDims) + 1
	if cfg.TypeClasses > 0 {
		want++
	}
	if len(layers) != want {
		return nil, errors.ModelLoad("checkpoint layer count does not match architecture", nil)
	}
	n := &Network{cfg: cfg}
	in := cfg.InputDim
	check := func(d *Dense, out int) error {
		if d.In != in || d.Out != out || len(d.W) != d.In*d.Out || len(d.B) != d.Out {
			return errors.ModelLoad("checkpoint layer shape does not match architecture", nil)
		}
		return nil
	}
	for i, h := range cfg.HiddenDims {
		if err := check(layers[i], h); err != nil {
			return nil, err
		}
		n.hidden = append(n.hidden, layers[i])
		in = h
	}
	if err := check(layers[len(cfg.HiddenDims)], 1); err != nil {
		return nil, err
	}
	n.head = layers[len(cfg.HiddenDims)]
	if cfg.TypeClasses > 0 {
		if err := check(layers[want-1], cfg.TypeClasses); err != nil {
			return nil, err
		}
		n.typeHead = layers[want-1]
	}
	return n, nil
}

// Output is one inference result.
type Output struct {
	Probability float64
	TypeProbs   []float64
}

// Predict runs the network in evaluation mode (no dropout).  Buffers are
// local to the call so Predict is safe for concurrent use.
func (n *Network) Predict(x []float32) Output {
	h := x
	for _, l := range n.hidden {
		next := make([]float32, l.Out)
		l.forward(next, h)
		relu(next)
		h = next
	}
	logit := make([]float32, 1)
	n.head.forward(logit, h)
	out := Output{Probability: sigmoid(float64(logit[0]))}
	if n.typeHead != nil {
		raw := make([]float32, n.typeHead.Out)
		n.typeHead.forward(raw, h)
		out.TypeProbs = softmax(raw)
	}
	return out
}

// logitsRows scores a row-major matrix without dropout.
func (n *Network) logitsRows(x []float32, rows int) []float64 {
	out := make([]float64, rows)
	w := n.cfg.InputDim
	for r := 0; r < rows; r++ {
		h := x[r*w : (r+1)*w]
		for _, l := range n.hidden {
			next := make([]float32, l.Out)
			l.forward(next, h)
			relu(next)
			h = next
		}
		logit := make([]float32, 1)
		n.head.forward(logit, h)
		out[r] = float64(logit[0])
	}
	return out
}

// Evaluate scores rows and returns probabilities and mean BCE loss.
func (n *Network) Evaluate(x, y []float32, rows int) ([]float64, float64) {
	logits := n.logitsRows(x, rows)
	probs := make([]float64, rows)
	var loss float64
	for i, z := range logits {
		probs[i] = sigmoid(z)
		loss += bceWithLogit(z, float64(y[i]))
	}
	if rows > 0 {
		loss /= float64(rows)
	}
	return probs, loss
}

// params returns the trainable tensors in a fixed order: W and B of each
// hidden layer, then of the binary head.  The type head has no labels and
// is not trained.
func (n *Network) params() [][]float32 {
	var ps [][]float32
	for _, l := range n.hidden {
		ps = append(ps, l.W, l.B)
	}
	return append(ps, n.head.W, n.head.B)
}

func relu(v []float32) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// bceWithLogit is −[y·log σ(z) + (1−y)·log(1−σ(z))] in a stable form.
func bceWithLogit(z, y float64) float64 {
	return math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
}

func softmax(raw []float32) []float64 {
	maxV := math.Inf(-1)
	for _, v := range raw {
		maxV = math.Max(maxV, float64(v))
	}
	out := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

//Personal.AI order the ending
