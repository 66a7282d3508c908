// Package services implements the gRPC services of the prediction server.
package services

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/wire"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "ppi.v1.InteractionService"

	MethodPredict      = "/" + ServiceName + "/Predict"
	MethodPredictBatch = "/" + ServiceName + "/PredictBatch"
	MethodGetModel     = "/" + ServiceName + "/GetModel"

	// TrailerErrorCode carries the application error code of a failed call.
	TrailerErrorCode = "x-ppi-error-code"
)

// PredictRequest is the Predict input.
type PredictRequest struct {
	common.PredictionRequest
}

func (r *PredictRequest) Validate() error {
	_, _, err := r.Inputs()
	return err
}

// PredictBatchRequest is the PredictBatch input.
type PredictBatchRequest struct {
	common.BatchPredictionRequest
}

// GetModelRequest is empty.
type GetModelRequest struct{}

// InteractionServer is the server API of ppi.v1.InteractionService.
type InteractionServer interface {
	Predict(ctx context.Context, req *PredictRequest) (*common.PredictionResult, error)
	PredictBatch(ctx context.Context, req *PredictBatchRequest) (*common.BatchPredictionResponse, error)
	GetModel(ctx context.Context, req *GetModelRequest) (*common.ModelInfo, error)
}

// InteractionServiceServer serves predictions from the inference service.
type InteractionServiceServer struct {
	svc          wire.Predictor
	maxBatchSize int
	logger       logging.Logger
}

func NewInteractionServiceServer(svc wire.Predictor, maxBatchSize int, logger logging.Logger) *InteractionServiceServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &InteractionServiceServer{svc: svc, maxBatchSize: maxBatchSize, logger: logger}
}

func (s *InteractionServiceServer) Predict(ctx context.Context, req *PredictRequest) (*common.PredictionResult, error) {
	pr, err := wire.PairRequest(req.PredictionRequest)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	p, err := s.svc.Predict(inference.WithTransport(ctx, "grpc"), pr)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return wire.Result(p), nil
}

func (s *InteractionServiceServer) PredictBatch(ctx context.Context, req *PredictBatchRequest) (*common.BatchPredictionResponse, error) {
	switch n := len(req.Pairs); {
	case n == 0:
		return nil, toStatus(ctx, errors.InvalidParam("pairs must not be empty"))
	case s.maxBatchSize > 0 && n > s.maxBatchSize:
		return nil, toStatus(ctx, errors.InvalidParam("too many pairs in batch"))
	}
	resp := wire.Batch(inference.WithTransport(ctx, "grpc"), s.svc, req.Pairs)
	return &resp, nil
}

func (s *InteractionServiceServer) GetModel(context.Context, *GetModelRequest) (*common.ModelInfo, error) {
	info := wire.ModelInfo(s.svc)
	return &info, nil
}

// toStatus maps an application error onto a gRPC status and attaches its
// code as a trailer.
func toStatus(ctx context.Context, err error) error {
	code := wire.Code(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerErrorCode, code.String()))
	detail := wire.Error(err)
	return status.Error(GRPCCode(code), detail.Message)
}

// GRPCCode is the gRPC status code for an application error code.
func GRPCCode(code errors.ErrorCode) codes.Code {
	switch code {
	case errors.CodeOK:
		return codes.OK
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation:
		return codes.InvalidArgument
	case errors.ErrCodeInsufficientInput, errors.ErrCodeInsufficientData, errors.ErrCodeArchitectureMismatch:
		return codes.FailedPrecondition
	case errors.ErrCodeModelUnavailable, errors.ErrCodeModelLoad, errors.ErrCodeServiceUnavailable:
		return codes.Unavailable
	case errors.ErrCodeNotFound, errors.ErrCodeSequenceNotFound:
		return codes.NotFound
	case errors.ErrCodeTimeout:
		return codes.DeadlineExceeded
	case errors.ErrCodeTooManyRequests:
		return codes.ResourceExhausted
	case errors.ErrCodeUnauthorized:
		return codes.Unauthenticated
	case errors.ErrCodeForbidden:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Service descriptor
// ─────────────────────────────────────────────────────────────────────────────

func unaryHandler[Req any](method string, call func(InteractionServer, context.Context, *Req) (interface{}, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InteractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(InteractionServer), ctx, req.(*Req))
		})
	}
}

// InteractionServiceDesc describes ppi.v1.InteractionService.
var InteractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InteractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler: unaryHandler(MethodPredict, func(s InteractionServer, ctx context.Context, in *PredictRequest) (interface{}, error) {
				return s.Predict(ctx, in)
			}),
		},
		{
			MethodName: "PredictBatch",
			Handler: unaryHandler(MethodPredictBatch, func(s InteractionServer, ctx context.Context, in *PredictBatchRequest) (interface{}, error) {
				return s.PredictBatch(ctx, in)
			}),
		},
		{
			MethodName: "GetModel",
			Handler: unaryHandler(MethodGetModel, func(s InteractionServer, ctx context.Context, in *GetModelRequest) (interface{}, error) {
				return s.GetModel(ctx, in)
			}),
		},
	},
	Metadata: "ppi/v1/interaction.json",
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// InteractionClient calls ppi.v1.InteractionService with the JSON codec.
type InteractionClient struct {
	cc grpc.ClientConnInterface
}

func NewInteractionClient(cc grpc.ClientConnInterface) *InteractionClient {
	return &InteractionClient{cc: cc}
}

func (c *InteractionClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	var trailer metadata.MD
	err := c.cc.Invoke(ctx, method, in, out, grpc.ForceCodec(JSONCodec{}), grpc.Trailer(&trailer))
	if err != nil {
		return FromStatus(err, trailer)
	}
	return nil
}

func (c *InteractionClient) Predict(ctx context.Context, req common.PredictionRequest) (*common.PredictionResult, error) {
	out := new(common.PredictionResult)
	if err := c.invoke(ctx, MethodPredict, &PredictRequest{req}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InteractionClient) PredictBatch(ctx context.Context, pairs []common.PredictionRequest) (*common.BatchPredictionResponse, error) {
	out := new(common.BatchPredictionResponse)
	in := &PredictBatchRequest{common.BatchPredictionRequest{Pairs: pairs}}
	if err := c.invoke(ctx, MethodPredictBatch, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InteractionClient) GetModel(ctx context.Context) (*common.ModelInfo, error) {
	out := new(common.ModelInfo)
	if err := c.invoke(ctx, MethodGetModel, &GetModelRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStatus rebuilds an ErrorDetail from a failed call.  The application
// code comes from the trailer when the server set one.
func FromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code := "GRPC_" + st.Code().String()
	if v := trailer.Get(TrailerErrorCode); len(v) > 0 {
		code = v[0]
	}
	return &common.ErrorDetail{Code: code, Message: st.Message()}
}

//Personal.AI order the ending
