// Command worker consumes training requests from Kafka and executes them
// one at a time.  Run state lands in the configured run store and every
// transition is published on the events topic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/PPI-Intelligence/internal/application/training"
	"github.com/turtacn/PPI-Intelligence/internal/bootstrap"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
	maxRetries              = 3
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz and /metrics")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *healthPort, logger); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, healthPort int, logger logging.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return apperrors.InvalidParam("worker requires kafka.brokers")
	}
	c, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Needs{Training: true})
	if err != nil {
		return err
	}
	defer c.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.GroupID,
		Topics:   []string{cfg.Kafka.RequestsTopic},
		Security: bootstrap.KafkaSecurity(cfg.Kafka),
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      maxRetries,
			RetryBackoff:    time.Second,
			DeadLetterTopic: cfg.Kafka.DeadLetter,
		},
	}, logger)
	if err != nil {
		return err
	}
	w := &worker{pipeline: c.Pipeline, cfg: cfg, logger: logger.Named("worker")}
	consumer.Subscribe(cfg.Kafka.RequestsTopic, kafka.RequestHandler(w.handle, logger))

	health := startHealthServer(healthPort, c, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = health.Shutdown(shutdownCtx)
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("starting PPI-Intelligence worker",
		logging.String("topic", cfg.Kafka.RequestsTopic),
		logging.String("group", cfg.Kafka.GroupID))

	<-ctx.Done()
	logger.Info("shutting down worker, waiting for the current run")
	return consumer.Close()
}

type worker struct {
	pipeline *training.Pipeline
	cfg      *config.Config
	logger   logging.Logger
}

// handle runs one request.  A run that fails on its own data is recorded
// as Failed and acknowledged; only backend outages are handed back to the
// consumer for retry.
func (w *worker) handle(ctx context.Context, req domainTraining.Request) error {
	params := bootstrap.TrainingParams(w.cfg)
	if req.Params != nil {
		params = *req.Params
	}
	opts := append(bootstrap.RunOptions(w.cfg), training.WithRunID(req.RequestID))
	out, err := w.pipeline.Run(ctx, params, opts...)
	if err == nil {
		w.logger.Info("training request completed",
			logging.RunID(req.RequestID),
			logging.String("model_key", out.ModelKey))
		return nil
	}
	if ctx.Err() != nil || retryable(err) {
		return err
	}
	w.logger.Error("training request failed", logging.RunID(req.RequestID), logging.Err(err))
	return nil
}

func retryable(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable) ||
		apperrors.IsCode(err, apperrors.ErrCodePairSourceUnavailable) ||
		apperrors.IsCode(err, apperrors.ErrCodeDatabaseError) ||
		apperrors.IsCode(err, apperrors.ErrCodeConflict)
}

func startHealthServer(port int, c *bootstrap.Components, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for _, chk := range c.Checkers {
			if err := chk.Check(r.Context()); err != nil {
				http.Error(w, chk.Name()+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", c.Collector.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}

//Personal.AI order the ending
