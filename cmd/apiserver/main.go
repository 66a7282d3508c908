// Command apiserver serves interaction predictions over HTTP and gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides server.port)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides grpc.port and enables gRPC)")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s not found, using environment and defaults\n", path)
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Enabled = true
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: outputPaths(cfg.Log.Output),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if device, native := cfg.ResolvedDevice(); !native {
		logger.Warn("requested device unavailable, running on cpu",
			logging.String("requested", cfg.Training.Device), logging.String("device", device))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, path, logger); err != nil {
		logger.Error("api server stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("api server stopped")
}

func run(ctx context.Context, cfg *config.Config, path string, logger logging.Logger) error {
	c, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Needs{Inference: true})
	if err != nil {
		return err
	}
	defer c.Close()

	servers, err := bootstrap.NewServers(c, version)
	if err != nil {
		return err
	}
	if path != "" {
		if err := config.Watch(path, c.HotReload, func(err error) {
			logger.Warn("config reload failed", logging.Err(err))
		}); err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	logger.Info("starting PPI-Intelligence API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled),
		logging.Int("grpc_port", cfg.GRPC.Port))
	return servers.Run(ctx)
}

func outputPaths(output string) []string {
	if output == "" {
		return nil
	}
	return []string{output}
}

//Personal.AI order the ending
