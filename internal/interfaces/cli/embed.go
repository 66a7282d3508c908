package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/application/training"
	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
)

func newEmbedCmd() *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "embed [ACCESSION...]",
		Short: "Resolve and embed proteins into the embedding cache",
		Long: "Embed the given accessions, or every protein named by the configured\n" +
			"pair source when none are given, and persist the cache snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, args, rebuild)
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "start a fresh cache generation")
	return cmd
}

func runEmbed(cmd *cobra.Command, args []string, rebuild bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	c, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, bootstrap.Needs{Training: true})
	if err != nil {
		return err
	}
	defer c.Close()

	ids := make([]string, 0, len(args))
	for _, a := range args {
		ids = append(ids, protein.NormalizeAccession(a))
	}
	if len(ids) == 0 {
		src, err := c.PairSource()
		if err != nil {
			return err
		}
		pairs, err := src.LoadPairs(ctx)
		if err != nil {
			return err
		}
		ids = interaction.Proteins(pairs)
	}

	rep, err := c.Pipeline.Embed(ctx, ids, rebuild || cliCtx.Config.Embedding.Rebuild)
	if err != nil {
		return err
	}
	return PrintResult(cmd, &embedResult{EmbedReport: rep, Store: c.Cache.StoreName()})
}

type embedResult struct {
	*training.EmbedReport
	Store string `json:"store"`
}

func (r *embedResult) TableHeaders() []string { return []string{"Accession", "Status", "Reason"} }

// TableRows lists only the proteins left without an embedding.
func (r *embedResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Unresolved)+len(r.Failed))
	for id, reason := range r.Unresolved {
		rows = append(rows, []string{id, "unresolved", reason})
	}
	for id, reason := range r.Failed {
		rows = append(rows, []string{id, "failed", reason})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}

func (r *embedResult) String() string {
	s := fmt.Sprintf("embedded %d/%d proteins into %s store", r.Embedded, r.Requested, r.Store)
	if ex := r.Excluded(); len(ex) > 0 {
		s += fmt.Sprintf("; excluded: %v", ex)
	}
	return s
}

//Personal.AI order the ending
