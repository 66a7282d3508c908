package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded training runs",
		Long:  "Runs are persisted when training.run_store is postgres.",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := openRunRepository(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			runs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return PrintResult(cmd, runList(runs))
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its per-epoch metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := openRunRepository(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			run, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			epochs, err := repo.Epochs(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &runDetail{Run: run, Epochs: epochs})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func openRunRepository(cmd *cobra.Command) (domainTraining.Repository, func(), error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg := cliCtx.Config
	if cfg.Training.RunStore != "postgres" {
		return nil, nil, errors.InvalidParam("runs are only persisted with training.run_store=postgres")
	}
	conn, err := postgres.NewConnection(bootstrap.PostgresConfig(cfg.Database), cliCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewRunRepository(conn.DB()), func() { _ = conn.Close() }, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rendering
// ─────────────────────────────────────────────────────────────────────────────

type runList []*domainTraining.Run

func (l runList) TableHeaders() []string {
	return []string{"ID", "State", "Epoch", "Best Epoch", "Best AUC", "Updated"}
}

func (l runList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{
			r.ID, string(r.State), strconv.Itoa(r.Epoch), strconv.Itoa(r.BestEpoch),
			formatFloat(r.BestAUC), r.UpdatedAt.Format(time.RFC3339),
		}
	}
	return rows
}

func (l runList) String() string {
	if len(l) == 0 {
		return "no runs recorded"
	}
	var sb strings.Builder
	for i, r := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s  %-12s epoch %d  best_auc=%.4f", r.ID, r.State, r.Epoch, r.BestAUC)
	}
	return sb.String()
}

type runDetail struct {
	Run    *domainTraining.Run          `json:"run"`
	Epochs []domainTraining.EpochRecord `json:"epochs"`
}

// metricNames is the sorted union of metric keys across epochs.
func (d *runDetail) metricNames() []string {
	seen := map[string]struct{}{}
	for _, e := range d.Epochs {
		for k := range e.Metrics {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *runDetail) TableHeaders() []string {
	return append(append([]string{"Epoch"}, d.metricNames()...), "Improved")
}

func (d *runDetail) TableRows() [][]string {
	names := d.metricNames()
	rows := make([][]string, len(d.Epochs))
	for i, e := range d.Epochs {
		row := []string{strconv.Itoa(e.Epoch)}
		for _, n := range names {
			row = append(row, formatFloat(e.Metrics[n]))
		}
		rows[i] = append(row, strconv.FormatBool(e.Improved))
	}
	return rows
}

func (d *runDetail) String() string {
	r := d.Run
	s := fmt.Sprintf("run %s: %s, epoch %d, best epoch %d (auc %.4f)", r.ID, r.State, r.Epoch, r.BestEpoch, r.BestAUC)
	if r.ModelKey != "" {
		s += "\ncheckpoint: " + r.ModelKey
	}
	if r.Error != "" {
		s += "\nerror: " + r.Error
	}
	return s
}

//Personal.AI order the ending
