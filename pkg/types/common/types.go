// Package common holds the wire types shared by the HTTP and gRPC
// transports and the Go client SDK.
package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a time.Time with RFC 3339 JSON encoding in UTC.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

// Now returns the current time as a Timestamp.
func Now() Timestamp { return Timestamp(time.Now().UTC()) }

// ─────────────────────────────────────────────────────────────────────────────
// Envelope
// ─────────────────────────────────────────────────────────────────────────────

// ErrorDetail is the structured error of an API response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// APIResponse wraps every /api/v1 response.
type APIResponse[T any] struct {
	Success   bool         `json:"success"`
	Data      T            `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp Timestamp    `json:"timestamp"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Predictions
// ─────────────────────────────────────────────────────────────────────────────

// ProteinInput names a protein by accession or by raw sequence; exactly one
// must be set.
type ProteinInput struct {
	Accession string `json:"accession,omitempty"`
	Sequence  string `json:"sequence,omitempty"`
}

// Validate enforces the exactly-one rule.
func (p ProteinInput) Validate() error {
	a, s := strings.TrimSpace(p.Accession) != "", strings.TrimSpace(p.Sequence) != ""
	switch {
	case a && s:
		return fmt.Errorf("protein input must set accession or sequence, not both")
	case !a && !s:
		return fmt.Errorf("protein input must set accession or sequence")
	}
	return nil
}

// PredictionRequest asks for one pair.  The flat protein_a/protein_b form
// takes accessions; the tagged a/b form also accepts raw sequences.  The
// tagged form wins when both are present.
type PredictionRequest struct {
	ProteinA string        `json:"protein_a,omitempty"`
	ProteinB string        `json:"protein_b,omitempty"`
	A        *ProteinInput `json:"a,omitempty"`
	B        *ProteinInput `json:"b,omitempty"`
}

// Inputs normalizes both request forms onto ProteinInput values.
func (r PredictionRequest) Inputs() (ProteinInput, ProteinInput, error) {
	a, b := r.A, r.B
	if a == nil && strings.TrimSpace(r.ProteinA) != "" {
		a = &ProteinInput{Accession: r.ProteinA}
	}
	if b == nil && strings.TrimSpace(r.ProteinB) != "" {
		b = &ProteinInput{Accession: r.ProteinB}
	}
	if a == nil || b == nil {
		return ProteinInput{}, ProteinInput{}, fmt.Errorf("both proteins must be provided")
	}
	if err := a.Validate(); err != nil {
		return ProteinInput{}, ProteinInput{}, fmt.Errorf("protein a: %w", err)
	}
	if err := b.Validate(); err != nil {
		return ProteinInput{}, ProteinInput{}, fmt.Errorf("protein b: %w", err)
	}
	return *a, *b, nil
}

// PredictionResult is one scored pair.
type PredictionResult struct {
	ProteinA        string  `json:"protein_a"`
	ProteinB        string  `json:"protein_b"`
	Interacts       bool    `json:"interacts"`
	Probability     float64 `json:"probability"`
	Confidence      string  `json:"confidence"`
	InteractionType string  `json:"interaction_type,omitempty"`
	TypeConfidence  float64 `json:"type_confidence,omitempty"`
	ModelID         string  `json:"model_id,omitempty"`
}

// InvocationResponse is the flat /invocations body.  It repeats the
// probability as interaction_probability for SageMaker-era clients.
type InvocationResponse struct {
	PredictionResult
	InteractionProbability float64 `json:"interaction_probability"`
}

// BatchPredictionRequest carries up to the server's batch limit of pairs.
type BatchPredictionRequest struct {
	Pairs []PredictionRequest `json:"pairs"`
}

// BatchItemResult is one slot of a batch: Result or Error.
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *PredictionResult `json:"result,omitempty"`
	Error  *ErrorDetail      `json:"error,omitempty"`
}

// BatchPredictionResponse preserves request order.
type BatchPredictionResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// ModelInfo describes the served checkpoint.
type ModelInfo struct {
	Loaded       bool               `json:"loaded"`
	ModelID      string             `json:"model_id,omitempty"`
	RunID        string             `json:"run_id,omitempty"`
	Architecture string             `json:"architecture,omitempty"`
	EmbeddingDim int                `json:"embedding_dim,omitempty"`
	Epoch        int                `json:"epoch,omitempty"`
	TrainedAt    *Timestamp         `json:"trained_at,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Threshold    float64            `json:"threshold"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth is one dependency's probe result.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the /healthz and /readyz body.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Model      *ModelInfo                 `json:"model,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

//Personal.AI order the ending
