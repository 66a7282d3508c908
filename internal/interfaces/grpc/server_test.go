package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/grpc/services"
	"github.com/turtacn/PPI-Intelligence/internal/testutil"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	types "github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

const testDim = 8

type harness struct {
	server *Server
	svc    *inference.Service
	client *services.InteractionClient
	health healthpb.HealthClient
	logger *testutil.MockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{logger: testutil.NewMockLogger()}
	fam := testutil.CrossFamilies(2)
	artifacts := testutil.Artifacts(t)
	metrics := common.NewInMemoryPPIMetrics()
	svc, err := inference.NewService(inference.Dependencies{
		Resolver: fam.Resolver(),
		Cache:    testutil.NewCache(t, artifacts, testDim, metrics),
		Metrics:  metrics,
	}, inference.DefaultOptions())
	require.NoError(t, err)
	h.svc = svc

	lis := bufconn.Listen(1 << 20)
	h.server, err = NewServer(Config{}, WithListener(lis), WithLogger(h.logger),
		WithMetrics(prometheus.NewAppMetrics(prometheus.NewNoopCollector())), WithGracefulTimeout(time.Second))
	require.NoError(t, err)
	h.server.RegisterService(&services.InteractionServiceDesc, services.NewInteractionServiceServer(svc, 2, h.logger))

	go func() { _ = h.server.Start() }()
	t.Cleanup(func() { _ = h.server.Stop(context.Background()) })

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	h.client = services.NewInteractionClient(conn)
	h.health = healthpb.NewHealthClient(conn)
	return h
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var detail *types.ErrorDetail
	require.ErrorAs(t, err, &detail)
	return detail.Code
}

func TestPredict_NoModelIsUnavailable(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Predict(ctxT(t), types.PredictionRequest{ProteinA: "P1", ProteinB: "Q1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeModelUnavailable.String(), appCode(t, err))
}

func TestPredict_RoundTrip(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.SwapModel(testutil.RandomCheckpoint(t, "m-grpc", testDim)))

	res, err := h.client.Predict(ctxT(t), types.PredictionRequest{ProteinA: "P1", ProteinB: "Q2"})
	require.NoError(t, err)
	assert.Equal(t, "P1", res.ProteinA)
	assert.Equal(t, "m-grpc", res.ModelID)
	assert.Equal(t, res.Probability >= 0.5, res.Interacts)
	assert.True(t, h.logger.HasMessage("info", "grpc request"))
}

func TestPredict_InsufficientInputIsFailedPrecondition(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.SwapModel(testutil.RandomCheckpoint(t, "m", testDim)))

	_, err := h.client.Predict(ctxT(t), types.PredictionRequest{ProteinA: "P1", ProteinB: "NOPE1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInsufficientInput.String(), appCode(t, err))
	assert.True(t, h.logger.HasMessage("warn", "grpc request rejected"))
}

func TestPredict_InvalidRequestRejectedByValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Predict(ctxT(t), types.PredictionRequest{ProteinA: "P1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBadRequest.String(), appCode(t, err))
}

func TestPredictBatch(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.SwapModel(testutil.RandomCheckpoint(t, "m", testDim)))

	resp, err := h.client.PredictBatch(ctxT(t), []types.PredictionRequest{
		{ProteinA: "P1", ProteinB: "Q1"},
		{ProteinA: "P2", ProteinB: "NOPE1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)

	_, err = h.client.PredictBatch(ctxT(t), make([]types.PredictionRequest, 3))
	assert.Equal(t, errors.ErrCodeBadRequest.String(), appCode(t, err))
}

func TestGetModel(t *testing.T) {
	h := newHarness(t)
	info, err := h.client.GetModel(ctxT(t))
	require.NoError(t, err)
	assert.False(t, info.Loaded)

	require.NoError(t, h.svc.SwapModel(testutil.RandomCheckpoint(t, "m-info", testDim)))
	info, err = h.client.GetModel(ctxT(t))
	require.NoError(t, err)
	assert.Equal(t, "m-info", info.ModelID)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, err := h.health.Check(ctxT(t), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	resp, err = h.health.Check(ctxT(t), &healthpb.HealthCheckRequest{Service: services.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	h.server.SetServing(services.ServiceName, true)
	resp, err = h.health.Check(ctxT(t), &healthpb.HealthCheckRequest{Service: services.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestRecoveryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := recoveryUnaryInterceptor(logger)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"},
		func(context.Context, interface{}) (interface{}, error) { panic("kaboom") })
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, logger.HasMessage("error", "grpc panic recovered"))
}

func TestLoggingInterceptor_SkipsHealth(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := loggingUnaryInterceptor(logger)
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(context.Context, interface{}) (interface{}, error) { return nil, nil })
	assert.Empty(t, logger.GetMessages())
}

func TestServer_StopBeforeStart(t *testing.T) {
	s, err := NewServer(Config{}, WithListener(bufconn.Listen(1024)))
	require.NoError(t, err)
	assert.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "bufconn", s.Addr())
}

//Personal.AI order the ending
