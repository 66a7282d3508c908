package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/wire"
	"github.com/turtacn/PPI-Intelligence/pkg/client"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

type predictOptions struct {
	file      string
	sequences bool
}

func newPredictCmd() *cobra.Command {
	o := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict [PROTEIN_A PROTEIN_B]",
		Short: "Score protein pairs with the trained model",
		Long: "Score one pair given as arguments, or every pair of a TSV file with\n" +
			"--file.  With --server the pairs are sent to a running prediction server;\n" +
			"otherwise the newest checkpoint is loaded in-process.",
		Args: func(cmd *cobra.Command, args []string) error {
			if o.file == "" && len(args) != 2 {
				return errors.InvalidParam("predict takes exactly two proteins, or --file")
			}
			if o.file != "" && len(args) != 0 {
				return errors.InvalidParam("--file and positional proteins are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, args, o)
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "TSV of pairs to score (Uniprot_A, Uniprot_B columns)")
	cmd.Flags().BoolVar(&o.sequences, "sequence", false, "treat the positional arguments as raw amino-acid sequences")
	return cmd
}

func runPredict(cmd *cobra.Command, args []string, o *predictOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	reqs, err := o.requests(ctx, args)
	if err != nil {
		return err
	}

	var resp common.BatchPredictionResponse
	if cliCtx.ServerAddr != "" {
		resp, err = predictRemote(ctx, cliCtx, reqs)
	} else {
		resp, err = predictLocal(ctx, cliCtx, reqs)
	}
	if err != nil {
		return err
	}

	if len(reqs) == 1 && resp.Results[0].Error != nil {
		d := resp.Results[0].Error
		return errors.New(errors.ErrorCode(d.Code), d.Message).WithDetail(d.Detail)
	}
	return PrintResult(cmd, &predictResult{BatchPredictionResponse: resp})
}

func (o *predictOptions) requests(ctx context.Context, args []string) ([]common.PredictionRequest, error) {
	if o.file == "" {
		if o.sequences {
			return []common.PredictionRequest{{
				A: &common.ProteinInput{Sequence: args[0]},
				B: &common.ProteinInput{Sequence: args[1]},
			}}, nil
		}
		return []common.PredictionRequest{{ProteinA: args[0], ProteinB: args[1]}}, nil
	}

	f, err := os.Open(o.file)
	if err != nil {
		return nil, errors.InvalidParam("cannot open pairs file").WithCause(err)
	}
	defer f.Close()
	pairs, err := protein.ParsePairsTSV(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errors.InvalidParam(fmt.Sprintf("%s contains no pairs", o.file))
	}
	reqs := make([]common.PredictionRequest, len(pairs))
	for i, p := range pairs {
		reqs[i] = common.PredictionRequest{ProteinA: p.A, ProteinB: p.B}
	}
	return reqs, nil
}

func predictLocal(ctx context.Context, cliCtx *CLIContext, reqs []common.PredictionRequest) (common.BatchPredictionResponse, error) {
	c, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, bootstrap.Needs{Inference: true})
	if err != nil {
		return common.BatchPredictionResponse{}, err
	}
	defer c.Close()
	if err := c.Inference.Reload(ctx); err != nil {
		return common.BatchPredictionResponse{}, err
	}
	return wire.Batch(ctx, c.Inference, reqs), nil
}

// predictRemote splits reqs into server-sized batches and stitches the
// results back in request order.
func predictRemote(ctx context.Context, cliCtx *CLIContext, reqs []common.PredictionRequest) (common.BatchPredictionResponse, error) {
	cl, err := client.NewClient(cliCtx.ServerAddr,
		client.WithUserAgent("ppi-cli/"+Version),
		client.WithAPIKey(cliCtx.Token))
	if err != nil {
		return common.BatchPredictionResponse{}, err
	}
	size := cliCtx.Config.Server.MaxBatchSize
	if size <= 0 {
		size = len(reqs)
	}
	out := common.BatchPredictionResponse{Results: make([]common.BatchItemResult, 0, len(reqs))}
	for start := 0; start < len(reqs); start += size {
		end := start + size
		if end > len(reqs) {
			end = len(reqs)
		}
		part, err := cl.PredictBatch(ctx, reqs[start:end])
		if err != nil {
			return common.BatchPredictionResponse{}, err
		}
		for _, r := range part.Results {
			r.Index += start
			out.Results = append(out.Results, r)
		}
		out.Succeeded += part.Succeeded
		out.Failed += part.Failed
	}
	return out, nil
}

type predictResult struct {
	common.BatchPredictionResponse
}

func (r *predictResult) TableHeaders() []string {
	return []string{"#", "Protein A", "Protein B", "Interacts", "Probability", "Confidence", "Type", "Error"}
}

func (r *predictResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Results))
	for _, item := range r.Results {
		row := []string{strconv.Itoa(item.Index), "", "", "", "", "", "", ""}
		if p := item.Result; p != nil {
			row[1], row[2] = p.ProteinA, p.ProteinB
			row[3] = strconv.FormatBool(p.Interacts)
			row[4] = formatFloat(p.Probability)
			row[5] = p.Confidence
			row[6] = p.InteractionType
		}
		if item.Error != nil {
			row[7] = item.Error.Code + ": " + item.Error.Message
		}
		rows = append(rows, row)
	}
	return rows
}

func (r *predictResult) String() string {
	var sb strings.Builder
	for _, item := range r.Results {
		if item.Error != nil {
			fmt.Fprintf(&sb, "#%d error %s: %s\n", item.Index, item.Error.Code, item.Error.Message)
			continue
		}
		p := item.Result
		verdict := "no interaction"
		if p.Interacts {
			verdict = "interacts"
		}
		fmt.Fprintf(&sb, "%s - %s: %s (p=%.4f, %s confidence)", p.ProteinA, p.ProteinB, verdict, p.Probability, p.Confidence)
		if p.InteractionType != "" {
			fmt.Fprintf(&sb, " type=%s", p.InteractionType)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

//Personal.AI order the ending
