package bootstrap

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	igrpc "github.com/turtacn/PPI-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/grpc/services"
	ihttp "github.com/turtacn/PPI-Intelligence/internal/interfaces/http"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ServerOption customizes NewServers.
type ServerOption func(*serverOptions)

type serverOptions struct {
	httpListener net.Listener
	grpcListener net.Listener
}

// WithHTTPListener serves HTTP on ln instead of server.port.
func WithHTTPListener(ln net.Listener) ServerOption {
	return func(o *serverOptions) { o.httpListener = ln }
}

// WithGRPCListener serves gRPC on ln instead of grpc.port.
func WithGRPCListener(ln net.Listener) ServerOption {
	return func(o *serverOptions) { o.grpcListener = ln }
}

// Servers is the prediction front end: the gin router and, when enabled,
// the gRPC interaction service.
type Servers struct {
	HTTP *ihttp.Server
	GRPC *igrpc.Server

	components *Components
	reloader   *servingReloader
	opts       serverOptions
}

// NewServers assembles the transports around c.Inference.
func NewServers(c *Components, version string, opts ...ServerOption) (*Servers, error) {
	if c == nil || c.Inference == nil {
		return nil, errors.InvalidParam("servers require an inference service")
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg := c.Config
	s := &Servers{components: c, opts: o}
	s.reloader = &servingReloader{target: c.Inference}

	rc := ihttp.RouterConfig{
		PredictionHandler: handlers.NewPredictionHandler(c.Inference, s.reloader, cfg.Server.MaxBatchSize, c.Logger),
		HealthHandler:     handlers.NewHealthHandler(version, c.Inference, c.Checkers...),
		MaxBodySize:       cfg.Server.MaxBodySize,
		RateLimitRPS:      cfg.Server.RateLimitRPS,
		RateLimitBurst:    cfg.Server.RateLimitBurst,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Mode:              cfg.Server.Mode,
		Logger:            c.Logger,
		MetricsCollector:  c.Collector,
		AppMetrics:        c.AppMetrics,
	}
	if c.Auth != nil {
		rc.Verifier = c.Auth
	}
	router := ihttp.NewRouter(rc)
	s.HTTP = ihttp.NewServer(ihttp.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, c.Logger)

	if cfg.GRPC.Enabled {
		gopts := []igrpc.Option{
			igrpc.WithLogger(c.Logger),
			igrpc.WithMetrics(c.AppMetrics),
			igrpc.WithGracefulTimeout(cfg.Server.ShutdownTimeout),
		}
		if o.grpcListener != nil {
			gopts = append(gopts, igrpc.WithListener(o.grpcListener))
		}
		gs, err := igrpc.NewServer(igrpc.Config{
			Port:           cfg.GRPC.Port,
			MaxRecvMsgSize: cfg.GRPC.MaxRecvMsgSize,
			Reflection:     cfg.Server.Mode == "debug",
		}, gopts...)
		if err != nil {
			return nil, err
		}
		gs.RegisterService(&services.InteractionServiceDesc,
			services.NewInteractionServiceServer(c.Inference, cfg.Server.MaxBatchSize, c.Logger))
		s.GRPC = gs
		s.reloader.grpc = gs
	}
	return s, nil
}

// Handler is the HTTP route tree.
func (s *Servers) Handler() http.Handler { return s.HTTP.Handler() }

// Run loads the newest checkpoint, then serves until ctx is cancelled or a
// listener fails.  A missing checkpoint is not fatal: the server starts
// unready and /api/v1/model/reload can load one later.
func (s *Servers) Run(ctx context.Context) error {
	if err := s.reloader.Reload(ctx); err != nil {
		s.components.Logger.Warn("no model loaded at startup", logging.Err(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.opts.httpListener != nil {
			return s.HTTP.Serve(s.opts.httpListener)
		}
		return s.HTTP.Start()
	})
	if s.GRPC != nil {
		g.Go(s.GRPC.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.components.Config.Server.ShutdownTimeout+time.Second)
		defer cancel()
		var firstErr error
		if s.GRPC != nil {
			firstErr = s.GRPC.Stop(stopCtx)
		}
		if err := s.HTTP.Stop(stopCtx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	})
	return g.Wait()
}

// HotReload applies the settings that can change without a restart: the
// inference options and the log level.  It is the config.Watch callback.
func (c *Components) HotReload(next *config.Config) {
	if c.Inference != nil {
		if err := c.Inference.Configure(InferenceOptions(next)); err != nil {
			c.Logger.Warn("inference options rejected", logging.Err(err))
			return
		}
	}
	logging.SetLevel(next.Log.Level)
	c.Logger.Info("configuration reloaded",
		logging.String("log_level", next.Log.Level),
		logging.Float64("threshold", next.Inference.Threshold))
}

// servingReloader keeps the gRPC health status in step with the model.
type servingReloader struct {
	target handlers.Reloader
	grpc   *igrpc.Server
}

func (r *servingReloader) Reload(ctx context.Context) error {
	err := r.target.Reload(ctx)
	if r.grpc != nil && err == nil {
		r.grpc.SetServing(services.ServiceName, true)
	}
	return err
}

//Personal.AI order the ending
