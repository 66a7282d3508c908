package embedding

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Item is one sequence to embed, keyed by its cache id.
type Item struct {
	ID       string
	Sequence string
}

// Result partitions a Compute call.
type Result struct {
	Vectors map[string]Vector
	Failed  map[string]error
}

// ComputerConfig sizes the batching.
type ComputerConfig struct {
	MaxLength int
	BatchSize int
	Workers   int
}

// Computer tokenizes, batches and mean-pools sequences through an Encoder.
type Computer struct {
	encoder Encoder
	cfg     ComputerConfig
	logger  logging.Logger
	metrics common.PPIMetrics
}

// NewComputer builds a Computer.  Zero config values fall back to
// MaxLength 1024, BatchSize 8, Workers 1.
func NewComputer(enc Encoder, cfg ComputerConfig, logger logging.Logger, metrics common.PPIMetrics) *Computer {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 8
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = common.NewNoopPPIMetrics()
	}
	return &Computer{encoder: enc, cfg: cfg, logger: logger, metrics: metrics}
}

// Dim is the encoder output width.
func (c *Computer) Dim() int { return c.encoder.Dim() }

type tokenized struct {
	id     string
	tokens []int
}

// Compute embeds items.  Sequences rejected by the tokenizer land in
// Result.Failed; they are never replaced by a default vector.  An encoder
// failure fails the whole call.
func (c *Computer) Compute(ctx context.Context, items []Item) (*Result, error) {
	res := &Result{Vectors: make(map[string]Vector, len(items)), Failed: make(map[string]error)}
	var ok []tokenized
	for _, it := range items {
		toks, err := Tokenize(it.Sequence, c.cfg.MaxLength)
		if err != nil {
			res.Failed[it.ID] = err
			c.logger.Warn("sequence rejected", logging.Accession(it.ID), logging.Err(err))
			continue
		}
		ok = append(ok, tokenized{id: it.ID, tokens: toks})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for start := 0; start < len(ok); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(ok) {
			end = len(ok)
		}
		batch := ok[start:end]
		g.Go(func() error {
			began := time.Now()
			vecs, err := c.encodeBatch(gctx, batch)
			c.metrics.RecordEmbeddingBatch(gctx, &common.EmbeddingBatchParams{
				Encoder:    c.encoder.Name(),
				Sequences:  len(batch),
				Failed:     failedCount(err, len(batch)),
				DurationMs: float64(time.Since(began).Milliseconds()),
			})
			if err != nil {
				return err
			}
			mu.Lock()
			for i, t := range batch {
				res.Vectors[t.id] = vecs[i]
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.GetCode(err) == errors.CodeUnknown {
			return nil, errors.Wrap(err, errors.ErrCodeEmbeddingCompute, "encoder failed")
		}
		return nil, err
	}
	return res, nil
}

func failedCount(err error, n int) int {
	if err != nil {
		return n
	}
	return 0
}

// encodeBatch pads batch to its longest member, encodes it and mean-pools
// each row over its non-pad positions.
func (c *Computer) encodeBatch(ctx context.Context, batch []tokenized) ([]Vector, error) {
	width := 0
	for _, t := range batch {
		if len(t.tokens) > width {
			width = len(t.tokens)
		}
	}
	padded := make([][]int, len(batch))
	for i, t := range batch {
		row := make([]int, width)
		copy(row, t.tokens)
		padded[i] = row
	}

	reps, err := c.encoder.Encode(ctx, padded)
	if err != nil {
		return nil, err
	}
	if len(reps) != len(batch) {
		return nil, errors.EmbeddingCompute("encoder returned a different batch size")
	}
	dim := c.encoder.Dim()
	out := make([]Vector, len(batch))
	for i, t := range batch {
		if len(reps[i]) < len(t.tokens) {
			return nil, errors.EmbeddingCompute("encoder returned fewer positions than tokens")
		}
		out[i] = MeanPool(reps[i], padded[i], dim)
	}
	return out, nil
}

// MeanPool averages the rows of rep whose token is not PadToken.
func MeanPool(rep [][]float32, tokens []int, dim int) Vector {
	sum := make([]float64, dim)
	n := 0
	for i, tok := range tokens {
		if tok == PadToken || i >= len(rep) {
			continue
		}
		for f := 0; f < dim && f < len(rep[i]); f++ {
			sum[f] += float64(rep[i][f])
		}
		n++
	}
	out := make(Vector, dim)
	if n == 0 {
		return out
	}
	for f := range out {
		out[f] = float32(sum[f] / float64(n))
	}
	return out
}

//Personal.AI order the ending
