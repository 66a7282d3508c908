package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/interfaces/wire"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

// HealthChecker is a dependency that can report its health.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

func (f HealthCheckerFunc) Name() string                    { return f.CheckerName }
func (f HealthCheckerFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	svc      wire.Predictor
	checkers []HealthChecker
	version  string
	startAt  time.Time
	timeout  time.Duration
}

// NewHealthHandler builds the handler.  svc may be nil for processes that
// do not serve predictions.
func NewHealthHandler(version string, svc wire.Predictor, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		svc:      svc,
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
		timeout:  5 * time.Second,
	}
}

func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
}

// Liveness always answers 200 while the process runs.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, common.HealthResponse{
		Status:  common.HealthUp,
		Version: h.version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness answers 200 when a model is loaded and every checker passes,
// 503 otherwise.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := common.HealthResponse{
		Status:     common.HealthUp,
		Version:    h.version,
		Uptime:     time.Since(h.startAt).Truncate(time.Second).String(),
		Components: h.checkAll(ctx),
	}
	if h.svc != nil {
		info := wire.ModelInfo(h.svc)
		resp.Model = &info
		if !info.Loaded {
			resp.Status = common.HealthDown
		}
	}
	for _, comp := range resp.Components {
		if comp.Status != common.HealthUp {
			resp.Status = common.HealthDown
		}
	}
	status := http.StatusOK
	if resp.Status != common.HealthUp {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *HealthHandler) checkAll(ctx context.Context) map[string]common.ComponentHealth {
	if len(h.checkers) == 0 {
		return nil
	}
	results := make(map[string]common.ComponentHealth, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, checker := range h.checkers {
		wg.Add(1)
		go func(ch HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := ch.Check(ctx)
			res := common.ComponentHealth{
				Status:  common.HealthUp,
				Latency: time.Since(start).Truncate(time.Microsecond).String(),
			}
			if err != nil {
				res.Status = common.HealthDown
				res.Message = err.Error()
			}
			mu.Lock()
			results[ch.Name()] = res
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}

//Personal.AI order the ending
