package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// WeightsFormat tags serialized encoder weights.
const WeightsFormat = "ppi.encoder.v1"

// EncoderWeights parameterizes ResidueEncoder.
//
//	Table  [Vocab × Dim]          residue embeddings (row 0 is padding)
//	Kernel [(2·Window+1) × Dim]   depthwise context taps
//	Bias   [Dim]
type EncoderWeights struct {
	Dim    int
	Window int
	Vocab  int
	Table  []float32
	Kernel []float32
	Bias   []float32
}

// Validate checks the parameter shapes.
func (w *EncoderWeights) Validate() error {
	if w == nil {
		return errors.ModelLoad("encoder weights are nil", nil)
	}
	switch {
	case w.Dim <= 0:
		return errors.ModelLoad("encoder weights: dim must be positive", nil)
	case w.Window < 0:
		return errors.ModelLoad("encoder weights: window must be >= 0", nil)
	case w.Vocab < VocabSize:
		return errors.ModelLoad(fmt.Sprintf("encoder weights: vocabulary %d smaller than %d", w.Vocab, VocabSize), nil)
	case len(w.Table) != w.Vocab*w.Dim:
		return errors.ModelLoad("encoder weights: table shape mismatch", nil)
	case len(w.Kernel) != (2*w.Window+1)*w.Dim:
		return errors.ModelLoad("encoder weights: kernel shape mismatch", nil)
	case len(w.Bias) != w.Dim:
		return errors.ModelLoad("encoder weights: bias shape mismatch", nil)
	}
	return nil
}

// SeededWeights builds deterministic weights from seed.  The residue table
// is uniform in [-1, 1]; the centre tap dominates the context kernel.
func SeededWeights(dim, window int, seed int64) *EncoderWeights {
	rng := rand.New(rand.NewSource(seed))
	w := &EncoderWeights{
		Dim:    dim,
		Window: window,
		Vocab:  VocabSize,
		Table:  make([]float32, VocabSize*dim),
		Kernel: make([]float32, (2*window+1)*dim),
		Bias:   make([]float32, dim),
	}
	for i := dim; i < len(w.Table); i++ {
		w.Table[i] = float32(rng.Float64()*2 - 1)
	}
	side := 0.2 / math.Max(1, float64(window))
	for o := 0; o <= 2*window; o++ {
		for f := 0; f < dim; f++ {
			v := (rng.Float64()*2 - 1) * side
			if o == window {
				v += 0.8
			}
			w.Kernel[o*dim+f] = float32(v)
		}
	}
	return w
}

// ─────────────────────────────────────────────────────────────────────────────
// Codec
// ─────────────────────────────────────────────────────────────────────────────

// EncodeWeights serializes w in protobuf wire format:
//
//	1 format  2 dim  3 window  4 vocab  5 table  6 kernel  7 bias
func EncodeWeights(w *EncoderWeights) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, WeightsFormat)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.Dim))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.Window))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.Vocab))
	b = appendPackedFloats(b, 5, w.Table)
	b = appendPackedFloats(b, 6, w.Kernel)
	b = appendPackedFloats(b, 7, w.Bias)
	return b, nil
}

// DecodeWeights parses EncodeWeights output.
func DecodeWeights(data []byte) (*EncoderWeights, error) {
	w := &EncoderWeights{}
	format := ""
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.ModelLoad("encoder weights: malformed tag", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, errors.ModelLoad("encoder weights: truncated format", protowire.ParseError(m))
			}
			format, n = v, m
		case num >= 2 && num <= 4 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, errors.ModelLoad("encoder weights: truncated header", protowire.ParseError(m))
			}
			switch num {
			case 2:
				w.Dim = int(v)
			case 3:
				w.Window = int(v)
			case 4:
				w.Vocab = int(v)
			}
			n = m
		case num >= 5 && num <= 7 && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, errors.ModelLoad("encoder weights: truncated tensor", protowire.ParseError(m))
			}
			vals, err := decodePackedFloats(raw)
			if err != nil {
				return nil, errors.ModelLoad("encoder weights: bad tensor", err)
			}
			switch num {
			case 5:
				w.Table = vals
			case 6:
				w.Kernel = vals
			case 7:
				w.Bias = vals
			}
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, errors.ModelLoad("encoder weights: malformed field", protowire.ParseError(m))
			}
			n = m
		}
		data = data[n:]
	}
	if format != WeightsFormat {
		return nil, errors.ModelLoad(fmt.Sprintf("encoder weights: unknown format %q", format), nil)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func appendPackedFloats(b []byte, num protowire.Number, vals []float32) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(vals)))
	for _, v := range vals {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

func decodePackedFloats(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("packed float length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		v, n := protowire.ConsumeFixed32(raw)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out[i] = math.Float32frombits(v)
		raw = raw[n:]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loader chain
// ─────────────────────────────────────────────────────────────────────────────

// WeightsSourceConfig locates encoder weights for each provider.
type WeightsSourceConfig struct {
	Sources   []string
	Path      string
	ObjectKey string
	URL       string
	Dim       int
	Window    int
	Seed      int64
	HTTP      common.HTTPProviderConfig
}

// NewWeightsLoader assembles the provider chain in the order named by
// cfg.Sources ("file", "object", "http", "seeded").  Weights whose width
// differs from cfg.Dim are rejected so a fallback can take over.
func NewWeightsLoader(cfg WeightsSourceConfig, store common.ObjectGetter, logger logging.Logger, metrics common.PPIMetrics) (*common.LoaderChain[*EncoderWeights], error) {
	decode := func(b []byte) (*EncoderWeights, error) {
		w, err := DecodeWeights(b)
		if err != nil {
			return nil, err
		}
		if cfg.Dim > 0 && w.Dim != cfg.Dim {
			return nil, errors.ModelLoad(fmt.Sprintf("encoder weights dim %d, configured %d", w.Dim, cfg.Dim), nil)
		}
		return w, nil
	}

	var providers []common.Provider[*EncoderWeights]
	for _, src := range cfg.Sources {
		switch src {
		case "file":
			providers = append(providers, common.Decoded(common.FileProvider(cfg.Path), decode))
		case "object":
			providers = append(providers, common.Decoded(common.ObjectProvider(store, cfg.ObjectKey), decode))
		case "http":
			hc := cfg.HTTP
			hc.URL = cfg.URL
			providers = append(providers, common.Decoded(common.HTTPProvider(hc), decode))
		case "seeded":
			providers = append(providers, common.ProviderFunc[*EncoderWeights]{
				ProviderName: "seeded",
				Fn: func(ctx context.Context) (*EncoderWeights, error) {
					return SeededWeights(cfg.Dim, cfg.Window, cfg.Seed), ctx.Err()
				},
			})
		default:
			return nil, errors.InvalidParam(fmt.Sprintf("unknown encoder weights source %q", src))
		}
	}
	return common.NewLoaderChain(logger, metrics, providers...), nil
}

//Personal.AI order the ending
