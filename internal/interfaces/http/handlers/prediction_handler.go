package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/wire"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

// Reloader swaps in a freshly loaded checkpoint.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Guard returns the middleware that admits callers holding perm.
type Guard func(perm keycloak.Permission) gin.HandlerFunc

// PredictionHandler serves the prediction endpoints.
type PredictionHandler struct {
	svc          wire.Predictor
	reloader     Reloader
	maxBatchSize int
	logger       logging.Logger
	guard        Guard
}

// NewPredictionHandler builds the handler.  reloader may be nil, in which
// case the reload endpoint is not mounted.
func NewPredictionHandler(svc wire.Predictor, reloader Reloader, maxBatchSize int, logger logging.Logger) *PredictionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PredictionHandler{svc: svc, reloader: reloader, maxBatchSize: maxBatchSize, logger: logger}
}

// WithGuard protects every route except /ping with g.
func (h *PredictionHandler) WithGuard(g Guard) *PredictionHandler {
	h.guard = g
	return h
}

func (h *PredictionHandler) guarded(perm keycloak.Permission, handler gin.HandlerFunc) []gin.HandlerFunc {
	if h.guard == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{h.guard(perm), handler}
}

// RegisterRoutes mounts the legacy endpoints on r and the versioned ones
// on api.
func (h *PredictionHandler) RegisterRoutes(r gin.IRoutes, api *gin.RouterGroup) {
	r.GET("/ping", h.Ping)
	r.POST("/invocations", h.guarded(keycloak.PermPredict, h.Invoke)...)

	api.POST("/predictions", h.guarded(keycloak.PermPredict, h.Predict)...)
	api.POST("/predictions/batch", h.guarded(keycloak.PermPredict, h.PredictBatch)...)
	api.GET("/model", h.guarded(keycloak.PermModelRead, h.Model)...)
	if h.reloader != nil {
		api.POST("/model/reload", h.guarded(keycloak.PermModelReload, h.Reload)...)
	}
}

// Ping is the container health probe: 200 with a model loaded, 503 without.
func (h *PredictionHandler) Ping(c *gin.Context) {
	if !h.svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Invoke is the flat single-pair endpoint kept for existing clients.
// Errors use the same envelope as the versioned API.
func (h *PredictionHandler) Invoke(c *gin.Context) {
	p, err := h.predict(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.Invocation(p))
}

// Predict handles POST /api/v1/predictions.
func (h *PredictionHandler) Predict(c *gin.Context) {
	p, err := h.predict(c)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, wire.Result(p))
}

func (h *PredictionHandler) predict(c *gin.Context) (*inference.Prediction, error) {
	var req common.PredictionRequest
	if err := bindJSON(c, &req); err != nil {
		return nil, err
	}
	pr, err := wire.PairRequest(req)
	if err != nil {
		return nil, err
	}
	return h.svc.Predict(inference.WithTransport(c.Request.Context(), "http"), pr)
}

// PredictBatch handles POST /api/v1/predictions/batch.  Per-pair failures
// are reported in their slot; the request itself succeeds.
func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	var req common.BatchPredictionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	switch {
	case len(req.Pairs) == 0:
		respondError(c, errors.InvalidParam("pairs must not be empty"))
		return
	case h.maxBatchSize > 0 && len(req.Pairs) > h.maxBatchSize:
		respondError(c, errors.InvalidParam("too many pairs in batch").
			WithDetail(fmt.Sprintf("%d > %d", len(req.Pairs), h.maxBatchSize)))
		return
	}
	resp := wire.Batch(inference.WithTransport(c.Request.Context(), "http"), h.svc, req.Pairs)
	respond(c, http.StatusOK, resp)
}

// Model handles GET /api/v1/model.
func (h *PredictionHandler) Model(c *gin.Context) {
	respond(c, http.StatusOK, wire.ModelInfo(h.svc))
}

// Reload handles POST /api/v1/model/reload.
func (h *PredictionHandler) Reload(c *gin.Context) {
	if err := h.reloader.Reload(c.Request.Context()); err != nil {
		h.logger.Warn("model reload failed", logging.Err(err))
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, wire.ModelInfo(h.svc))
}

//Personal.AI order the ending
