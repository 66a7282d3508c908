package training

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/resolver"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// EmbedReport summarizes the Embedding stage.
type EmbedReport struct {
	Requested  int               `json:"requested"`
	Embedded   int               `json:"embedded"`
	Unresolved map[string]string `json:"unresolved,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// Excluded lists every id left without an embedding, sorted.
func (r *EmbedReport) Excluded() []string {
	out := make([]string, 0, len(r.Unresolved)+len(r.Failed))
	for id := range r.Unresolved {
		out = append(out, id)
	}
	for id := range r.Failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Embed resolves and embeds ids into the cache and persists it, without
// creating a run.  It backs the standalone embed command.
func (p *Pipeline) Embed(ctx context.Context, ids []string, rebuild bool) (*EmbedReport, error) {
	if err := p.deps.Cache.Load(ctx, rebuild); err != nil {
		return nil, err
	}
	rep, _, err := p.embed(ctx, ids, p.deps.Logger)
	return rep, err
}

// embed resolves sequences, fills the cache and persists it.  Proteins that
// fail resolution or encoding are excluded, never fatal.  The persist step
// runs even when nothing new was computed so a rebuilt cache is written out.
func (p *Pipeline) embed(ctx context.Context, ids []string, log logging.Logger) (*EmbedReport, map[string]embedding.Vector, error) {
	rep := &EmbedReport{
		Requested:  len(ids),
		Unresolved: map[string]string{},
		Failed:     map[string]string{},
	}
	resolved, err := resolver.Batch(ctx, p.deps.Resolver, ids, p.deps.ResolverConcurrency, log)
	if err != nil {
		return rep, nil, err
	}
	for id, rerr := range resolved.Unresolved {
		rep.Unresolved[id] = rerr.Error()
	}

	items := make([]embedding.Item, 0, len(resolved.Resolved))
	for _, id := range ids {
		if seq, ok := resolved.Resolved[id]; ok {
			items = append(items, embedding.Item{ID: id, Sequence: seq})
		}
	}
	vectors, failures, err := p.deps.Cache.GetOrCompute(ctx, items)
	if err != nil {
		return rep, nil, err
	}
	for id, ferr := range failures {
		rep.Failed[id] = ferr.Error()
	}
	rep.Embedded = len(vectors)

	if err := p.deps.Cache.Persist(ctx); err != nil {
		return rep, vectors, err
	}
	log.Info("embedding stage finished",
		logging.Int("requested", rep.Requested),
		logging.Int("embedded", rep.Embedded),
		logging.Int("unresolved", len(rep.Unresolved)),
		logging.Int("failed", len(rep.Failed)))
	return rep, vectors, nil
}

// SampleNegatives draws ratio × usable positives synthetic negatives over
// universe.
func SampleNegatives(positives []interaction.Pair, universe []string, ratio float64, seed int64) ([]interaction.Pair, error) {
	sampler, err := interaction.NewNegativeSampler(ratio, seed)
	if err != nil {
		return nil, err
	}
	return sampler.Sample(positives, universe)
}

type builtDataset struct {
	set    *interaction.Dataset
	report *interaction.Report
}

// buildDataset samples negatives over the embedded proteins and joins every
// labeled pair with its vectors.
func (p *Pipeline) buildDataset(ctx context.Context, positives []interaction.Pair, vectors map[string]embedding.Vector, params domainTraining.Params) (*builtDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	positives, err := interaction.Dedupe(positives)
	if err != nil {
		return nil, err
	}
	universe := make([]string, 0, len(vectors))
	for id := range vectors {
		universe = append(universe, id)
	}
	negatives, err := SampleNegatives(positives, universe, params.NegativeRatio, params.Seed)
	if err != nil {
		return nil, err
	}

	builder, err := interaction.NewBuilder(params.TestFraction, params.Seed)
	if err != nil {
		return nil, err
	}
	all := make([]interaction.Pair, 0, len(positives)+len(negatives))
	all = append(all, positives...)
	all = append(all, negatives...)
	lookup := interaction.LookupFunc(func(id string) ([]float32, bool) {
		v, ok := vectors[id]
		return v, ok
	})
	set, report, err := builder.Build(all, lookup)
	if err != nil {
		return nil, err
	}
	if len(set.Train) == 0 {
		return nil, errors.InsufficientData("no training examples left after joining embeddings")
	}
	return &builtDataset{set: set, report: report}, nil
}

// writeManifest stores the labeled pairs with their split assignment.
func (p *Pipeline) writeManifest(ctx context.Context, key string, ds *interaction.Dataset) error {
	var buf bytes.Buffer
	buf.WriteString("protein_a\tprotein_b\tlabel\torigin\tsplit\n")
	write := func(split string, part []interaction.Example) {
		for _, ex := range part {
			fmt.Fprintf(&buf, "%s\t%s\t%d\t%s\t%s\n", ex.Key.A, ex.Key.B, int(ex.Label), ex.Origin, split)
		}
	}
	write("train", ds.Train)
	write("test", ds.Test)
	if err := p.deps.Artifacts.Put(ctx, key, buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "write dataset manifest")
	}
	return nil
}

// initialNetwork builds a fresh network or loads the warm-start checkpoint.
func (p *Pipeline) initialNetwork(ctx context.Context, cfg ppinet.Config, dim int, params domainTraining.Params) (*ppinet.Network, error) {
	if strings.TrimSpace(params.WarmStart) == "" {
		return ppinet.NewNetwork(cfg, params.Seed)
	}
	ckpt, err := ppinet.LoadCheckpoint(ctx, p.deps.Artifacts, params.WarmStart)
	if err != nil {
		return nil, err
	}
	if err := ckpt.Compatible(dim, cfg); err != nil {
		return nil, err
	}
	p.deps.Logger.Info("warm start", logging.String("checkpoint", params.WarmStart),
		logging.String("model_id", ckpt.Metadata.ModelID))
	return ckpt.Network, nil
}

//Personal.AI order the ending
