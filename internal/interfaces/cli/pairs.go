package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
)

func newPairsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "Manage the observed interaction set",
	}

	var target, source string
	importCmd := &cobra.Command{
		Use:   "import FILE.tsv",
		Short: "Load a HINT-format TSV into postgres or neo4j",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()

			pairs, err := protein.NewTSVPairSource(args[0]).LoadPairs(ctx)
			if err != nil {
				return err
			}
			pairs, err = interaction.Dedupe(pairs)
			if err != nil {
				return err
			}
			if source == "" {
				source = filepath.Base(args[0])
			}

			c, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, bootstrap.Needs{})
			if err != nil {
				return err
			}
			defer c.Close()
			sink, err := c.PairImporter(target)
			if err != nil {
				return err
			}
			n, err := sink.ImportPairs(ctx, pairs, source)
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("pairs imported",
				logging.String("target", target),
				logging.String("source", source),
				logging.Int("read", len(pairs)),
				logging.Int("written", n))
			PrintSuccess(cmd, fmt.Sprintf("imported %d of %d pairs into %s", n, len(pairs), target))
			return nil
		},
	}
	importCmd.Flags().StringVar(&target, "to", "postgres", "import target: postgres or neo4j")
	importCmd.Flags().StringVar(&source, "source", "", "provenance label stored with each pair (default: file name)")

	cmd.AddCommand(importCmd)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			db := cliCtx.Config.Database
			if err := postgres.RunMigrations(bootstrap.PostgresConfig(db), db.MigrationPath, cliCtx.Logger); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the newest migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			db := cliCtx.Config.Database
			if err := postgres.RollbackMigration(bootstrap.PostgresConfig(db), db.MigrationPath, steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "migrations to roll back")
	status := &cobra.Command{
		Use:   "status",
		Short: "Print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			db := cliCtx.Config.Database
			version, dirty, err := postgres.MigrationStatus(bootstrap.PostgresConfig(db), db.MigrationPath)
			if err != nil {
				return err
			}
			return PrintResult(cmd, map[string]interface{}{"version": version, "dirty": dirty})
		},
	}
	cmd.AddCommand(up, down, status)
	return cmd
}

//Personal.AI order the ending
