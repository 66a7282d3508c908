// Package inference serves interaction predictions from the loaded
// classifier checkpoint.
package inference

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Results
// ─────────────────────────────────────────────────────────────────────────────

// Confidence buckets a probability for display.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
)

// ConfidenceFor maps p onto its bucket.
func ConfidenceFor(p float64) Confidence {
	switch {
	case p > 0.8:
		return ConfidenceHigh
	case p > 0.6:
		return ConfidenceMedium
	case p > 0.4:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// Prediction is the answer for one pair.
type Prediction struct {
	ProteinA        string     `json:"protein_a"`
	ProteinB        string     `json:"protein_b"`
	Interacts       bool       `json:"interacts"`
	Probability     float64    `json:"probability"`
	Confidence      Confidence `json:"confidence"`
	InteractionType string     `json:"interaction_type,omitempty"`
	TypeConfidence  float64    `json:"type_confidence,omitempty"`
	ModelID         string     `json:"model_id"`
}

// PairRequest names the two proteins of one prediction.
type PairRequest struct {
	A protein.Ref
	B protein.Ref
}

// BatchItem is one PredictBatch slot: exactly one of Prediction and Err is set.
type BatchItem struct {
	Prediction *Prediction
	Err        error
}

// Options are the hot-reloadable knobs.
type Options struct {
	Threshold             float64
	ReportInteractionType bool
}

func (o Options) validate() error {
	if o.Threshold <= 0 || o.Threshold >= 1 || math.IsNaN(o.Threshold) {
		return errors.InvalidParam("inference threshold must be in (0, 1)")
	}
	return nil
}

// DefaultOptions is threshold 0.5 without interaction types.
func DefaultOptions() Options {
	return Options{Threshold: 0.5}
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Dependencies wires a Service.  Loader is optional and only used by Reload.
type Dependencies struct {
	Resolver protein.SequenceResolver
	Cache    *embedding.Cache
	Loader   *common.LoaderChain[*ppinet.Checkpoint]
	Logger   logging.Logger
	Metrics  common.PPIMetrics
}

// Service answers prediction requests concurrently.  The checkpoint and the
// options are swapped atomically; requests in flight finish on the values
// they started with.
type Service struct {
	deps     Dependencies
	combiner ppinet.SymmetricCombiner
	model    atomic.Pointer[ppinet.Checkpoint]
	opts     atomic.Pointer[Options]
}

func NewService(deps Dependencies, opts Options) (*Service, error) {
	if deps.Resolver == nil || deps.Cache == nil {
		return nil, errors.InvalidParam("inference service requires a resolver and an embedding cache")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = common.NewNoopPPIMetrics()
	}
	s := &Service{deps: deps}
	s.opts.Store(&opts)
	return s, nil
}

// SwapModel installs ckpt; nil unloads the current model.  A checkpoint
// whose embedding width disagrees with the cache is rejected.
func (s *Service) SwapModel(ckpt *ppinet.Checkpoint) error {
	if ckpt == nil {
		s.model.Store(nil)
		s.deps.Logger.Warn("model unloaded")
		return nil
	}
	if ckpt.Network == nil {
		return errors.ModelLoad("checkpoint carries no network", nil)
	}
	if dim := s.deps.Cache.Dim(); dim != 0 && dim != ckpt.Metadata.EmbeddingDim {
		return errors.Newf(errors.ErrCodeArchitectureMismatch,
			"checkpoint expects %d-wide embeddings, cache holds %d", ckpt.Metadata.EmbeddingDim, dim)
	}
	prev := s.model.Swap(ckpt)
	fields := []logging.Field{
		logging.String("model_id", ckpt.Metadata.ModelID),
		logging.String("architecture", ckpt.Metadata.Architecture),
		logging.Int("epoch", ckpt.Metadata.Epoch),
	}
	if prev != nil {
		fields = append(fields, logging.String("replaced", prev.Metadata.ModelID))
	}
	s.deps.Logger.Info("model loaded", fields...)
	return nil
}

// Reload loads a checkpoint through the configured loader chain and swaps
// it in.  The current model stays in place when loading fails.
func (s *Service) Reload(ctx context.Context) error {
	if s.deps.Loader == nil {
		return errors.ModelLoad("no checkpoint loader configured", nil)
	}
	ckpt, _, err := s.deps.Loader.Load(ctx)
	if err != nil {
		return err
	}
	return s.SwapModel(ckpt)
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool { return s.model.Load() != nil }

// Model returns the loaded checkpoint metadata.
func (s *Service) Model() (ppinet.Metadata, bool) {
	ckpt := s.model.Load()
	if ckpt == nil {
		return ppinet.Metadata{}, false
	}
	return ckpt.Metadata, true
}

// Options returns the options in force.
func (s *Service) Options() Options { return *s.opts.Load() }

// Configure replaces the options atomically.
func (s *Service) Configure(o Options) error {
	if err := o.validate(); err != nil {
		return err
	}
	old := s.opts.Swap(&o)
	if *old != o {
		s.deps.Logger.Info("inference options updated",
			logging.Float64("threshold", o.Threshold),
			logging.Bool("report_interaction_type", o.ReportInteractionType))
	}
	return nil
}

// Predict scores one pair.
func (s *Service) Predict(ctx context.Context, req PairRequest) (*Prediction, error) {
	start := time.Now()
	p, err := s.predict(ctx, req)
	s.record(ctx, p, err, start)
	return p, err
}

// PredictBatch scores every pair; a failing pair never fails its siblings.
// Proteins shared between pairs are served from the cache after first use.
func (s *Service) PredictBatch(ctx context.Context, reqs []PairRequest) []BatchItem {
	out := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			out[i] = BatchItem{Err: err}
			continue
		}
		p, err := s.Predict(ctx, req)
		out[i] = BatchItem{Prediction: p, Err: err}
	}
	return out
}

func (s *Service) predict(ctx context.Context, req PairRequest) (*Prediction, error) {
	ckpt := s.model.Load()
	if ckpt == nil {
		return nil, errors.ModelUnavailable("no trained model is loaded")
	}
	if err := req.A.Validate(); err != nil {
		return nil, err
	}
	if err := req.B.Validate(); err != nil {
		return nil, err
	}
	opts := s.Options()

	va, err := s.embed(ctx, req.A)
	if err != nil {
		return nil, err
	}
	vb, err := s.embed(ctx, req.B)
	if err != nil {
		return nil, err
	}
	dim := ckpt.Metadata.EmbeddingDim
	if len(va) != dim || len(vb) != dim {
		return nil, errors.Newf(errors.ErrCodeArchitectureMismatch,
			"embedding width %d/%d, model expects %d", len(va), len(vb), dim)
	}

	x := make([]float32, s.combiner.Width(dim))
	s.combiner.Combine(x, va, vb)
	out := ckpt.Network.Predict(x)

	pred := &Prediction{
		ProteinA:    req.A.Display(),
		ProteinB:    req.B.Display(),
		Interacts:   out.Probability >= opts.Threshold,
		Probability: out.Probability,
		Confidence:  ConfidenceFor(out.Probability),
		ModelID:     ckpt.Metadata.ModelID,
	}
	if pred.Interacts && opts.ReportInteractionType && len(out.TypeProbs) > 0 {
		best := 0
		for i, p := range out.TypeProbs {
			if p > out.TypeProbs[best] {
				best = i
			}
		}
		if best < len(ppinet.InteractionTypes) {
			pred.InteractionType = string(ppinet.InteractionTypes[best])
			pred.TypeConfidence = out.TypeProbs[best]
		}
	}
	return pred, nil
}

// embed returns the cached vector for ref, resolving and computing it on a
// miss.  Accessions already in the cache skip resolution.
func (s *Service) embed(ctx context.Context, ref protein.Ref) (embedding.Vector, error) {
	key := ref.Key()
	if v, ok, err := s.deps.Cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	seq := ref.Value()
	if ref.Kind() == protein.RefAccession {
		resolved, err := s.deps.Resolver.Resolve(ctx, ref.Value())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.InsufficientInput("protein could not be resolved").
				WithDetail(ref.Display()).WithCause(err)
		}
		seq = resolved
	}

	v, err := s.deps.Cache.Embed(ctx, embedding.Item{ID: key, Sequence: seq})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.IsCode(err, errors.ErrCodeEmbeddingCompute) {
			return nil, errors.InsufficientInput("protein could not be embedded").
				WithDetail(ref.Display()).WithCause(err)
		}
		return nil, err
	}
	return v, nil
}

func (s *Service) record(ctx context.Context, p *Prediction, err error, start time.Time) {
	outcome := common.OutcomeError
	switch {
	case err == nil && p.Interacts:
		outcome = common.OutcomeInteracts
	case err == nil:
		outcome = common.OutcomeNoInteraction
	case errors.IsCode(err, errors.ErrCodeInsufficientInput):
		outcome = common.OutcomeInsufficientInput
	case errors.IsCode(err, errors.ErrCodeModelUnavailable):
		outcome = common.OutcomeModelUnavailable
	}
	took := time.Since(start)
	s.deps.Metrics.RecordInference(ctx, &common.InferenceMetricParams{
		Transport:  TransportFrom(ctx),
		Outcome:    outcome,
		DurationMs: float64(took.Microseconds()) / 1000,
	})
	if err != nil && outcome == common.OutcomeError {
		s.deps.Logger.Error("prediction failed", logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport tagging
// ─────────────────────────────────────────────────────────────────────────────

type transportKey struct{}

// WithTransport tags ctx with the transport serving the request.
func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey{}, name)
}

// TransportFrom returns the transport tag, "direct" when unset.
func TransportFrom(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey{}).(string); ok && v != "" {
		return v
	}
	return "direct"
}

//Personal.AI order the ending
