package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/application/training"
	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

type trainOptions struct {
	pairSource    string
	pairsPath     string
	negativeRatio float64
	testFraction  float64
	batchSize     int
	epochs        int
	learningRate  float64
	seed          int64
	hiddenDims    []int
	dropout       float64
	modelDir      string
	warmStart     string
	rebuild       bool
	enqueue       bool
}

func newTrainCmd() *cobra.Command {
	o := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the interaction classifier",
		Long: "Resolve and embed every protein of the positive pairs, sample negatives,\n" +
			"train the network and store the best checkpoint.  With --enqueue the run\n" +
			"is published to the worker queue instead of executed here.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.pairSource, "pair-source", "", "positive pair source: tsv, postgres or neo4j")
	f.StringVar(&o.pairsPath, "pairs", "", "TSV of positive pairs (Uniprot_A, Uniprot_B columns)")
	f.Float64Var(&o.negativeRatio, "negative-ratio", 0, "negatives sampled per positive")
	f.Float64Var(&o.testFraction, "test-fraction", 0, "held-out fraction, stratified by label")
	f.IntVar(&o.batchSize, "batch-size", 0, "mini-batch size")
	f.IntVar(&o.epochs, "epochs", 0, "training epochs")
	f.Float64Var(&o.learningRate, "learning-rate", 0, "initial Adam learning rate")
	f.Int64Var(&o.seed, "seed", 0, "seed for sampling, splitting and initialization")
	f.IntSliceVar(&o.hiddenDims, "hidden-dims", nil, "hidden layer widths")
	f.Float64Var(&o.dropout, "dropout", 0, "dropout probability")
	f.StringVar(&o.modelDir, "model-dir", "", "artifact directory for the checkpoint")
	f.StringVar(&o.warmStart, "warm-start", "", "checkpoint key to initialize weights from")
	f.BoolVar(&o.rebuild, "rebuild", false, "discard the embedding cache before embedding")
	f.BoolVar(&o.enqueue, "enqueue", false, "publish a training request to Kafka instead of training locally")
	return cmd
}

// apply copies the flags the user set onto cfg.
func (o *trainOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	t := &cfg.Training
	if f.Changed("pair-source") {
		t.PairSource = o.pairSource
	}
	if f.Changed("pairs") {
		t.PairsPath = o.pairsPath
	}
	if f.Changed("negative-ratio") {
		t.NegativeRatio = o.negativeRatio
	}
	if f.Changed("test-fraction") {
		t.TestFraction = o.testFraction
	}
	if f.Changed("batch-size") {
		t.BatchSize = o.batchSize
	}
	if f.Changed("epochs") {
		t.Epochs = o.epochs
	}
	if f.Changed("learning-rate") {
		t.LearningRate = o.learningRate
	}
	if f.Changed("seed") {
		t.Seed = o.seed
	}
	if f.Changed("hidden-dims") {
		t.HiddenDims = o.hiddenDims
	}
	if f.Changed("dropout") {
		t.Dropout = o.dropout
	}
	if f.Changed("model-dir") {
		t.ModelDir = o.modelDir
	}
	if f.Changed("warm-start") {
		t.WarmStart = o.warmStart
	}
	if o.rebuild {
		cfg.Embedding.Rebuild = true
	}
}

func runTrain(cmd *cobra.Command, o *trainOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	o.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return errors.InvalidParam(err.Error())
	}
	params := bootstrap.TrainingParams(cfg)
	if err := training.ValidateParams(params); err != nil {
		return err
	}

	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	if o.enqueue {
		return enqueueTraining(ctx, cmd, cliCtx, params)
	}

	c, err := bootstrap.Build(ctx, cfg, cliCtx.Logger, bootstrap.Needs{Training: true})
	if err != nil {
		return err
	}
	defer c.Close()

	out, err := c.Pipeline.Run(ctx, params, bootstrap.RunOptions(cfg)...)
	if err != nil {
		return err
	}
	return PrintResult(cmd, newTrainResult(out))
}

func enqueueTraining(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, params domainTraining.Params) error {
	cfg := cliCtx.Config
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.InvalidParam("--enqueue requires kafka.brokers")
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		Security:     bootstrap.KafkaSecurity(cfg.Kafka),
	}, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	req := domainTraining.Request{RequestID: uuid.New().String(), Params: &params}
	if err := kafka.PublishRequest(ctx, producer, cfg.Kafka.RequestsTopic, bootstrap.EventSource, req); err != nil {
		return err
	}
	cliCtx.Logger.Info("training request enqueued",
		logging.String("request_id", req.RequestID),
		logging.String("topic", cfg.Kafka.RequestsTopic))
	PrintSuccess(cmd, fmt.Sprintf("training request %s enqueued on %s", req.RequestID, cfg.Kafka.RequestsTopic))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Result rendering
// ─────────────────────────────────────────────────────────────────────────────

// trainResult is the printable summary of a run.  The checkpoint weights
// stay out of it.
type trainResult struct {
	RunID     string                `json:"run_id"`
	ModelKey  string                `json:"model_key"`
	Best      *ppinet.EpochMetrics  `json:"best,omitempty"`
	History   []ppinet.EpochMetrics `json:"history"`
	Dataset   *interaction.Report   `json:"dataset,omitempty"`
	Embedding *training.EmbedReport `json:"embedding,omitempty"`
}

func newTrainResult(out *training.Outcome) *trainResult {
	r := &trainResult{
		ModelKey:  out.ModelKey,
		Best:      out.Best,
		History:   out.History,
		Dataset:   out.Dataset,
		Embedding: out.Embedding,
	}
	if out.Run != nil {
		r.RunID = out.Run.ID
	}
	return r
}

func (r *trainResult) TableHeaders() []string {
	return []string{"Epoch", "Train Loss", "Test Loss", "Test AUC", "Accuracy", "F1", "LR", "Best"}
}

func (r *trainResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.History))
	for _, m := range r.History {
		best := ""
		if r.Best != nil && r.Best.Epoch == m.Epoch {
			best = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(m.Epoch),
			formatFloat(m.TrainLoss),
			formatFloat(m.TestLoss),
			formatFloat(m.TestAUC),
			formatFloat(m.TestAccuracy),
			formatFloat(m.F1),
			strconv.FormatFloat(m.LearningRate, 'g', 4, 64),
			best,
		})
	}
	return rows
}

func (r *trainResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run:        %s\n", r.RunID)
	fmt.Fprintf(&sb, "checkpoint: %s\n", r.ModelKey)
	if r.Dataset != nil {
		fmt.Fprintf(&sb, "dataset:    %d train (+%d/-%d), %d test (+%d/-%d), %d pairs dropped\n",
			r.Dataset.TrainPositives+r.Dataset.TrainNegatives, r.Dataset.TrainPositives, r.Dataset.TrainNegatives,
			r.Dataset.TestPositives+r.Dataset.TestNegatives, r.Dataset.TestPositives, r.Dataset.TestNegatives,
			r.Dataset.Dropped)
	}
	if r.Embedding != nil {
		fmt.Fprintf(&sb, "embedded:   %d/%d proteins\n", r.Embedding.Embedded, r.Embedding.Requested)
	}
	if r.Best != nil {
		fmt.Fprintf(&sb, "best epoch: %d  test_auc=%.4f  test_loss=%.4f  f1=%.4f",
			r.Best.Epoch, r.Best.TestAUC, r.Best.TestLoss, r.Best.F1)
	}
	return strings.TrimRight(sb.String(), "\n")
}

//Personal.AI order the ending
