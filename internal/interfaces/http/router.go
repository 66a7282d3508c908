package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	PredictionHandler *handlers.PredictionHandler
	HealthHandler     *handlers.HealthHandler

	// MaxBodySize caps request bodies; 0 disables the cap.
	MaxBodySize int64
	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// Mode is the gin mode: debug, release or test.
	Mode string

	// Verifier enables bearer-token checks on the prediction routes; nil
	// leaves them open.
	Verifier keycloak.Verifier
	// Enforcer maps token roles to permissions; nil uses the default table.
	Enforcer *keycloak.Enforcer

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	AppMetrics       *prometheus.AppMetrics
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	r.Use(middleware.Metrics(cfg.AppMetrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}
	if cfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		if cfg.RateLimitBurst > 0 {
			rl.BurstSize = cfg.RateLimitBurst
		}
		rl.IdleTTL = 5 * time.Minute
		r.Use(middleware.RateLimit(rl))
	}
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.PredictionHandler != nil {
		if cfg.Verifier != nil {
			auth := keycloak.NewMiddleware(cfg.Verifier, cfg.Enforcer, cfg.Logger,
				keycloak.WithFailureHandler(handlers.AbortWithError))
			cfg.PredictionHandler.WithGuard(auth.Require)
		}
		cfg.PredictionHandler.RegisterRoutes(r, api)
	}
	return r
}

//Personal.AI order the ending
