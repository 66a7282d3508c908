// Package training runs the end-to-end classifier training pipeline: resolve
// sequences, embed proteins, sample negatives, build the dataset, train and
// checkpoint.  Each run is tracked through the domain state machine and
// reported to the run repository and event publisher.
package training

import (
	"context"
	"math/rand"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const (
	// ModelFile is the checkpoint name inside a run's model directory.
	ModelFile = "model.ppi"
	// ManifestFile lists the labeled pairs of the built dataset.
	ManifestFile = "dataset.tsv"
	// RunsDir holds each run's artifacts under the model directory until
	// the run completes and they are promoted.
	RunsDir = "runs"
)

// StagingDir is where run id writes its checkpoint and manifest while it
// is in progress.
func StagingDir(modelDir, id string) string {
	return path.Join(modelDir, RunsDir, id)
}

// Dependencies wires a Pipeline.  Runs, Events, Logger and Metrics default
// to in-memory or no-op implementations.
type Dependencies struct {
	Pairs               protein.PairSource
	Resolver            protein.SequenceResolver
	Cache               *embedding.Cache
	Artifacts           storage.ArtifactStore
	Runs                domainTraining.Repository
	Events              domainTraining.Publisher
	Logger              logging.Logger
	Metrics             common.PPIMetrics
	ResolverConcurrency int
	// Lock, when set, is held for the whole run so processes sharing an
	// artifact store never write the same model key concurrently.
	Lock RunLock
	// Clock is replaced in tests.
	Clock func() time.Time
}

// RunLock serializes runs across processes.
type RunLock interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Pipeline executes training runs.  A Pipeline may run several runs
// sequentially; concurrent runs must use distinct model directories.
type Pipeline struct {
	deps     Dependencies
	combiner ppinet.SymmetricCombiner
}

func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if deps.Pairs == nil || deps.Resolver == nil || deps.Cache == nil || deps.Artifacts == nil {
		return nil, errors.InvalidParam("training pipeline requires a pair source, resolver, cache and artifact store")
	}
	if deps.Runs == nil {
		deps.Runs = domainTraining.NewMemoryRepository()
	}
	if deps.Events == nil {
		deps.Events = domainTraining.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = common.NewNoopPPIMetrics()
	}
	if deps.ResolverConcurrency <= 0 {
		deps.ResolverConcurrency = 4
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Pipeline{deps: deps}, nil
}

// Outcome is what a finished run produced.
type Outcome struct {
	Run        *domainTraining.Run
	Embedding  *EmbedReport
	Dataset    *interaction.Report
	History    []ppinet.EpochMetrics
	Best       *ppinet.EpochMetrics
	Checkpoint *ppinet.Checkpoint
	ModelKey   string
}

// ValidateParams rejects parameters no stage could honour.
func ValidateParams(p domainTraining.Params) error {
	switch {
	case p.Epochs <= 0:
		return errors.InvalidParam("epochs must be positive")
	case p.BatchSize <= 0:
		return errors.InvalidParam("batch size must be positive")
	case p.LearningRate <= 0:
		return errors.InvalidParam("learning rate must be positive")
	case p.NegativeRatio < 0:
		return errors.InvalidParam("negative ratio must be >= 0")
	case p.TestFraction < 0 || p.TestFraction >= 1:
		return errors.InvalidParam("test fraction must be in [0, 1)")
	case p.Dropout < 0 || p.Dropout >= 1:
		return errors.InvalidParam("dropout must be in [0, 1)")
	case p.ModelDir == "":
		return errors.InvalidParam("model dir is required")
	}
	return nil
}

// Run executes one training run to completion.  The returned Outcome
// always carries the run record, also when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, params domainTraining.Params, opts ...RunOption) (*Outcome, error) {
	o := runOptions{plateau: ppinet.Plateau{Patience: 3, Factor: 0.5, MinLR: 1e-7}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if l := p.deps.Lock; l != nil {
		if err := l.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := l.Unlock(context.Background()); err != nil {
				p.deps.Logger.Warn("training lock release failed", logging.Err(err))
			}
		}()
	}
	id := o.runID
	if id == "" {
		id = uuid.New().String()
	}
	r := &runner{
		p:      p,
		params: params,
		opts:   o,
		run:    domainTraining.NewRun(id, params, p.deps.Clock()),
		log:    p.deps.Logger.With(logging.RunID(id)),
	}
	r.out = &Outcome{Run: r.run}
	if err := p.deps.Runs.Create(ctx, r.run); err != nil {
		return r.out, err
	}
	r.log.Info("training run started",
		logging.String("pair_source", p.deps.Pairs.Name()),
		logging.Int("epochs", params.Epochs))

	err := r.execute(ctx)
	if err == nil {
		err = r.promote(ctx)
	}
	if err != nil {
		r.fail(err)
		return r.out, err
	}
	r.finish()
	return r.out, nil
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runID   string
	plateau ppinet.Plateau
}

// WithRunID uses id instead of a fresh UUID, e.g. the id of a queued request.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithPlateau overrides the learning-rate schedule.
func WithPlateau(patience int, factor, minLR float64) RunOption {
	return func(o *runOptions) { o.plateau = ppinet.Plateau{Patience: patience, Factor: factor, MinLR: minLR} }
}

// ─────────────────────────────────────────────────────────────────────────────
// Run execution
// ─────────────────────────────────────────────────────────────────────────────

type runner struct {
	p      *Pipeline
	params domainTraining.Params
	opts   runOptions
	run    *domainTraining.Run
	out    *Outcome
	log    logging.Logger
}

func (r *runner) execute(ctx context.Context) error {
	// Embedding
	if err := r.transition(ctx, domainTraining.StateEmbedding); err != nil {
		return err
	}
	positives, err := r.p.deps.Pairs.LoadPairs(ctx)
	if err != nil {
		return err
	}
	if len(positives) == 0 {
		return errors.InsufficientData("pair source returned no positive pairs")
	}
	if err := r.p.deps.Cache.Load(ctx, r.params.Rebuild); err != nil {
		return err
	}
	rep, vectors, err := r.p.embed(ctx, interaction.Proteins(positives), r.log)
	r.out.Embedding = rep
	if err != nil {
		return err
	}

	// DatasetReady
	dataset, err := r.p.buildDataset(ctx, positives, vectors, r.params)
	if err != nil {
		return err
	}
	r.out.Dataset = dataset.report
	if err := r.p.writeManifest(ctx, r.staged(ManifestFile), dataset.set); err != nil {
		return err
	}
	if err := r.transition(ctx, domainTraining.StateDatasetReady); err != nil {
		return err
	}
	r.log.Info("dataset ready",
		logging.Int("train_positives", dataset.report.TrainPositives),
		logging.Int("train_negatives", dataset.report.TrainNegatives),
		logging.Int("test_positives", dataset.report.TestPositives),
		logging.Int("test_negatives", dataset.report.TestNegatives),
		logging.Int("dropped", dataset.report.Dropped))

	// Training
	if err := r.transition(ctx, domainTraining.StateTraining); err != nil {
		return err
	}
	return r.train(ctx, dataset.set)
}

func (r *runner) train(ctx context.Context, ds *interaction.Dataset) error {
	cfg := ppinet.Config{
		InputDim:    r.p.combiner.Width(ds.Dim),
		HiddenDims:  r.params.HiddenDims,
		Dropout:     r.params.Dropout,
		TypeClasses: len(ppinet.InteractionTypes),
	}
	net, err := r.p.initialNetwork(ctx, cfg, ds.Dim, r.params)
	if err != nil {
		return err
	}

	xTrain, yTrain := ds.Features(ds.Train, r.p.combiner)
	xTest, yTest := ds.Features(ds.Test, r.p.combiner)
	nTrain, nTest := len(ds.Train), len(ds.Test)

	stepper := ppinet.NewStepper(net, r.params.LearningRate, r.params.Seed)
	shuffle := rand.New(rand.NewSource(r.params.Seed))
	plateau := r.opts.plateau
	modelKey := r.staged(ModelFile)
	var best *ppinet.EpochMetrics

	for epoch := 1; epoch <= r.params.Epochs; epoch++ {
		start := time.Now()
		res, err := stepper.RunEpoch(ctx, xTrain, yTrain, nTrain, r.params.BatchSize, shuffle)
		if err != nil {
			return err
		}
		testProbs, testLoss := net.Evaluate(xTest, yTest, nTest)
		trainConf := ppinet.Classify(res.Probs, res.Labels, 0.5)
		testConf := ppinet.Classify(testProbs, yTest, 0.5)
		m := ppinet.EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     res.Loss,
			TrainAccuracy: trainConf.Accuracy(),
			TrainAUC:      ppinet.AUC(res.Probs, res.Labels),
			TestLoss:      testLoss,
			TestAccuracy:  testConf.Accuracy(),
			TestAUC:       ppinet.AUC(testProbs, yTest),
			Precision:     testConf.Precision(),
			Recall:        testConf.Recall(),
			F1:            testConf.F1(),
			LearningRate:  stepper.LearningRate(),
		}
		improved := m.Improves(best)
		if improved {
			ckpt := &ppinet.Checkpoint{Network: net, Metadata: r.metadata(cfg, ds.Dim, m)}
			if err := ppinet.SaveCheckpoint(ctx, r.p.deps.Artifacts, modelKey, ckpt); err != nil {
				return err
			}
			mc := m
			best = &mc
			r.run.ModelKey = modelKey
		}
		r.out.History = append(r.out.History, m)
		if err := r.recordEpoch(ctx, m, improved, time.Since(start)); err != nil {
			return err
		}

		if next := plateau.Step(testLoss, stepper.LearningRate()); next != stepper.LearningRate() {
			r.log.Info("reducing learning rate", logging.Float64("from", stepper.LearningRate()), logging.Float64("to", next))
			stepper.SetLearningRate(next)
		}
	}

	r.out.Best = best
	ckpt, err := ppinet.LoadCheckpoint(ctx, r.p.deps.Artifacts, modelKey)
	if err != nil {
		return err
	}
	r.out.Checkpoint = ckpt
	return nil
}

func (r *runner) staged(name string) string {
	return path.Join(StagingDir(r.params.ModelDir, r.run.ID), name)
}

// promote copies the staged checkpoint and manifest over the live ones in
// the model directory.  The live keys are left untouched until every epoch
// has finished.
func (r *runner) promote(ctx context.Context) error {
	store := r.p.deps.Artifacts
	for _, name := range []string{ManifestFile, ModelFile} {
		data, err := store.Get(ctx, r.staged(name))
		if err != nil {
			return err
		}
		if err := store.Put(ctx, path.Join(r.params.ModelDir, name), data); err != nil {
			return err
		}
	}
	modelKey := path.Join(r.params.ModelDir, ModelFile)
	r.run.ModelKey = modelKey
	r.out.ModelKey = modelKey
	for _, name := range []string{ManifestFile, ModelFile} {
		if err := store.Delete(ctx, r.staged(name)); err != nil {
			r.log.Warn("staged artifact not removed", logging.String("key", r.staged(name)), logging.Err(err))
		}
	}
	r.log.Info("model promoted", logging.String("model_key", modelKey))
	return nil
}

func (r *runner) metadata(cfg ppinet.Config, dim int, m ppinet.EpochMetrics) ppinet.Metadata {
	return ppinet.Metadata{
		ModelID:      uuid.New().String(),
		RunID:        r.run.ID,
		Architecture: cfg.Architecture(),
		Combiner:     r.p.combiner.Name(),
		EmbeddingDim: dim,
		Network:      cfg,
		TrainedAt:    r.p.deps.Clock().UTC(),
		Epoch:        m.Epoch,
		Metrics:      m.Map(),
	}
}

func (r *runner) recordEpoch(ctx context.Context, m ppinet.EpochMetrics, improved bool, took time.Duration) error {
	now := r.p.deps.Clock()
	metrics := m.Map()
	r.run.ObserveEpoch(m.Epoch, m.TestAUC, improved, now)
	if err := r.p.deps.Runs.Update(ctx, r.run); err != nil {
		return err
	}
	if err := r.p.deps.Runs.RecordEpoch(ctx, domainTraining.EpochRecord{
		RunID: r.run.ID, Epoch: m.Epoch, Metrics: metrics, Improved: improved, RecordedAt: now,
	}); err != nil {
		return err
	}
	r.p.deps.Metrics.RecordEpoch(ctx, &common.EpochMetricParams{
		RunID: r.run.ID, Epoch: m.Epoch, Metrics: metrics, DurationMs: float64(took.Milliseconds()),
	})
	r.publish(ctx, domainTraining.Event{
		Type: domainTraining.EventEpoch, Epoch: m.Epoch, Improved: improved, Metrics: metrics,
	})
	r.log.Info("epoch finished",
		logging.Int("epoch", m.Epoch),
		logging.Float64("train_loss", m.TrainLoss),
		logging.Float64("test_loss", m.TestLoss),
		logging.Float64("test_auc", m.TestAUC),
		logging.Float64("test_accuracy", m.TestAccuracy),
		logging.Bool("checkpointed", improved))
	return nil
}

func (r *runner) transition(ctx context.Context, to domainTraining.State) error {
	if err := r.run.Transition(to, r.p.deps.Clock()); err != nil {
		return err
	}
	if err := r.p.deps.Runs.Update(ctx, r.run); err != nil {
		return err
	}
	r.publish(ctx, domainTraining.Event{Type: domainTraining.EventStateChanged})
	return nil
}

// fail records the terminal failure.  Bookkeeping uses a fresh context so a
// cancelled run still lands in the repository as failed.
func (r *runner) fail(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stage := r.run.State
	if err := r.run.Fail(cause, r.p.deps.Clock()); err != nil {
		r.log.Error("cannot mark run failed", logging.Err(err))
		return
	}
	if err := r.p.deps.Runs.Update(ctx, r.run); err != nil {
		r.log.Error("cannot record failed run", logging.Err(err))
	}
	r.publish(ctx, domainTraining.Event{Type: domainTraining.EventStateChanged, Error: r.run.Error})
	r.p.deps.Metrics.RecordRunFinished(ctx, string(domainTraining.StateFailed))
	r.log.Error("training run failed",
		logging.String("stage", string(stage)),
		logging.Int("epoch", r.run.Epoch),
		logging.String("staging_dir", StagingDir(r.params.ModelDir, r.run.ID)),
		logging.Err(cause))
}

func (r *runner) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.transition(ctx, domainTraining.StateCompleted); err != nil {
		r.log.Error("cannot record completed run", logging.Err(err))
	}
	r.p.deps.Metrics.RecordRunFinished(ctx, string(domainTraining.StateCompleted))
	fields := []logging.Field{logging.String("model_key", r.run.ModelKey), logging.Int("best_epoch", r.run.BestEpoch)}
	if r.out.Best != nil {
		fields = append(fields, logging.Float64("best_auc", r.out.Best.TestAUC))
	}
	r.log.Info("training run completed", fields...)
}

// publish delivers ev; delivery failures are logged and never fail the run.
func (r *runner) publish(ctx context.Context, ev domainTraining.Event) {
	ev.RunID = r.run.ID
	ev.State = r.run.State
	ev.Timestamp = r.p.deps.Clock().UTC()
	if err := r.p.deps.Events.Publish(ctx, ev); err != nil {
		r.log.Warn("run event not delivered", logging.String("type", string(ev.Type)), logging.Err(err))
	}
}

//Personal.AI order the ending
