package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
)

func newServeCmd() *cobra.Command {
	var port, grpcPort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction server",
		Long: "Load the newest checkpoint and serve predictions over HTTP, and over gRPC\n" +
			"when grpc.enabled is set.  The config file is watched for threshold and\n" +
			"log-level changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("grpc-port") {
				cfg.GRPC.Enabled = true
				cfg.GRPC.Port = grpcPort
			}

			ctx := cmd.Context()
			c, err := bootstrap.Build(ctx, cfg, cliCtx.Logger, bootstrap.Needs{Inference: true})
			if err != nil {
				return err
			}
			defer c.Close()

			servers, err := bootstrap.NewServers(c, Version)
			if err != nil {
				return err
			}
			if cliCtx.ConfigPath != "" {
				if err := config.Watch(cliCtx.ConfigPath, c.HotReload, func(err error) {
					cliCtx.Logger.Warn("config reload failed", logging.Err(err))
				}); err != nil {
					cliCtx.Logger.Warn("config watch disabled", logging.Err(err))
				}
			}
			return servers.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port; overrides server.port")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "enable gRPC on this port")
	return cmd
}

//Personal.AI order the ending
