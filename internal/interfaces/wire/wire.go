// Package wire converts between the public wire types and the inference
// service's domain values.  Both transports share it.
package wire

import (
	"context"
	stderrors "errors"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

// PairRequest validates req and maps it onto an inference request.
func PairRequest(req common.PredictionRequest) (inference.PairRequest, error) {
	a, b, err := req.Inputs()
	if err != nil {
		return inference.PairRequest{}, errors.InvalidParam(err.Error())
	}
	return inference.PairRequest{A: ref(a), B: ref(b)}, nil
}

func ref(in common.ProteinInput) protein.Ref {
	if in.Sequence != "" {
		return protein.ByRawSequence(in.Sequence)
	}
	return protein.ByAccession(in.Accession)
}

// Result maps a prediction onto its wire form.
func Result(p *inference.Prediction) *common.PredictionResult {
	if p == nil {
		return nil
	}
	return &common.PredictionResult{
		ProteinA:        p.ProteinA,
		ProteinB:        p.ProteinB,
		Interacts:       p.Interacts,
		Probability:     p.Probability,
		Confidence:      string(p.Confidence),
		InteractionType: p.InteractionType,
		TypeConfidence:  p.TypeConfidence,
		ModelID:         p.ModelID,
	}
}

// Invocation is the flat /invocations body.
func Invocation(p *inference.Prediction) common.InvocationResponse {
	return common.InvocationResponse{PredictionResult: *Result(p), InteractionProbability: p.Probability}
}

// Predictor is the slice of the inference service the transports use.
type Predictor interface {
	Predict(ctx context.Context, req inference.PairRequest) (*inference.Prediction, error)
	PredictBatch(ctx context.Context, reqs []inference.PairRequest) []inference.BatchItem
	Model() (ppinet.Metadata, bool)
	Options() inference.Options
	Ready() bool
}

// Code classifies err.  Context errors map to timeout; anything that is
// not an application error is internal.
func Code(err error) errors.ErrorCode {
	switch {
	case err == nil:
		return errors.CodeOK
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.ErrCodeTimeout
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		return code
	}
	return errors.ErrCodeInternal
}

// Error maps err onto an ErrorDetail.  Non-application errors surface
// without leaking their text.
func Error(err error) *common.ErrorDetail {
	var app *errors.AppError
	if stderrors.As(err, &app) {
		return &common.ErrorDetail{Code: app.Code.String(), Message: app.Message, Detail: app.Detail}
	}
	code := Code(err)
	return &common.ErrorDetail{Code: code.String(), Message: errors.DefaultMessageForCode(code)}
}

// Batch validates each slot independently, runs the valid ones through svc
// and assembles the response in request order.
func Batch(ctx context.Context, svc Predictor, reqs []common.PredictionRequest) common.BatchPredictionResponse {
	out := common.BatchPredictionResponse{Results: make([]common.BatchItemResult, len(reqs))}
	valid := make([]inference.PairRequest, 0, len(reqs))
	slots := make([]int, 0, len(reqs))
	for i, r := range reqs {
		out.Results[i].Index = i
		pr, err := PairRequest(r)
		if err != nil {
			out.Results[i].Error = Error(err)
			continue
		}
		valid = append(valid, pr)
		slots = append(slots, i)
	}
	for j, item := range svc.PredictBatch(ctx, valid) {
		i := slots[j]
		if item.Err != nil {
			out.Results[i].Error = Error(item.Err)
			continue
		}
		out.Results[i].Result = Result(item.Prediction)
	}
	for _, r := range out.Results {
		if r.Error != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	return out
}

// ModelInfo describes what svc is serving.
func ModelInfo(svc Predictor) common.ModelInfo {
	info := common.ModelInfo{Threshold: svc.Options().Threshold}
	md, ok := svc.Model()
	if !ok {
		return info
	}
	trained := common.Timestamp(md.TrainedAt)
	info.Loaded = true
	info.ModelID = md.ModelID
	info.RunID = md.RunID
	info.Architecture = md.Architecture
	info.EmbeddingDim = md.EmbeddingDim
	info.Epoch = md.Epoch
	info.TrainedAt = &trained
	info.Metrics = md.Metrics
	return info
}

//Personal.AI order the ending
