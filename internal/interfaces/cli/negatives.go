package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
)

type negativesOptions struct {
	pairs            string
	ratio            float64
	seed             int64
	includePositives bool
}

func newNegativesCmd() *cobra.Command {
	o := &negativesOptions{}
	cmd := &cobra.Command{
		Use:   "negatives",
		Short: "Sample non-interacting pairs from the positive set",
		Long: "Draw floor(ratio x positives) distinct pairs of proteins that appear in the\n" +
			"positive set but are not known to interact.  The draw is reproducible for\n" +
			"a fixed --seed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNegatives(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.pairs, "pairs", "", "TSV of positive pairs; defaults to the configured pair source")
	f.Float64Var(&o.ratio, "ratio", 0, "negatives per positive; defaults to training.negative_ratio")
	f.Int64Var(&o.seed, "seed", 0, "sampling seed; defaults to training.seed")
	f.BoolVar(&o.includePositives, "include-positives", false, "emit the positives too, labeled")
	return cmd
}

func runNegatives(cmd *cobra.Command, o *negativesOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	ratio, seed := cliCtx.Config.Training.NegativeRatio, cliCtx.Config.Training.Seed
	if cmd.Flags().Changed("ratio") {
		ratio = o.ratio
	}
	if cmd.Flags().Changed("seed") {
		seed = o.seed
	}
	sampler, err := interaction.NewNegativeSampler(ratio, seed)
	if err != nil {
		return err
	}

	positives, err := loadPositives(ctx, cliCtx, o.pairs)
	if err != nil {
		return err
	}
	positives, err = interaction.Dedupe(positives)
	if err != nil {
		return err
	}
	negatives, err := sampler.Sample(positives, interaction.Proteins(positives))
	if err != nil {
		return err
	}

	out := &pairsResult{Pairs: negatives}
	if o.includePositives {
		out.Pairs = append(append([]interaction.Pair{}, positives...), negatives...)
	}
	return PrintResult(cmd, out)
}

// loadPositives reads path when given, the configured pair source otherwise.
func loadPositives(ctx context.Context, cliCtx *CLIContext, path string) ([]interaction.Pair, error) {
	if path == "" && cliCtx.Config.Training.PairSource == "tsv" {
		path = cliCtx.Config.Training.PairsPath
	}
	if path != "" {
		return protein.NewTSVPairSource(path).LoadPairs(ctx)
	}
	c, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, bootstrap.Needs{})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	src, err := c.PairSource()
	if err != nil {
		return nil, err
	}
	return src.LoadPairs(ctx)
}

// pairsResult prints labeled pairs; text output is a TSV the pair loaders
// read back.
type pairsResult struct {
	Pairs []interaction.Pair `json:"pairs"`
}

func (r *pairsResult) TableHeaders() []string {
	return []string{"Protein A", "Protein B", "Label", "Origin"}
}

func (r *pairsResult) TableRows() [][]string {
	rows := make([][]string, len(r.Pairs))
	for i, p := range r.Pairs {
		rows[i] = []string{p.A, p.B, p.Label.String(), p.Origin.String()}
	}
	return rows
}

func (r *pairsResult) String() string {
	var sb strings.Builder
	sb.WriteString("Uniprot_A\tUniprot_B\tLabel")
	for _, p := range r.Pairs {
		fmt.Fprintf(&sb, "\n%s\t%s\t%d", p.A, p.B, p.Label)
	}
	return sb.String()
}

//Personal.AI order the ending
