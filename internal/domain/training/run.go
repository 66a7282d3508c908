// Package training defines the training-run aggregate, its state machine,
// the events it emits and the repository port that records it.
package training

import (
	"time"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// State machine
// ─────────────────────────────────────────────────────────────────────────────

// State is a run's lifecycle stage.
type State string

const (
	StateInitialized  State = "initialized"
	StateEmbedding    State = "embedding"
	StateDatasetReady State = "dataset_ready"
	StateTraining     State = "training"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

var transitions = map[State][]State{
	StateInitialized:  {StateEmbedding, StateFailed},
	StateEmbedding:    {StateDatasetReady, StateFailed},
	StateDatasetReady: {StateTraining, StateFailed},
	StateTraining:     {StateCompleted, StateFailed},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Run aggregate
// ─────────────────────────────────────────────────────────────────────────────

// Params is the configuration a run was started with.
type Params struct {
	PairSource    string  `json:"pair_source"`
	NegativeRatio float64 `json:"negative_ratio"`
	TestFraction  float64 `json:"test_fraction"`
	BatchSize     int     `json:"batch_size"`
	Epochs        int     `json:"epochs"`
	LearningRate  float64 `json:"learning_rate"`
	Seed          int64   `json:"seed"`
	HiddenDims    []int   `json:"hidden_dims"`
	Dropout       float64 `json:"dropout"`
	EmbeddingDim  int     `json:"embedding_dim"`
	ModelDir      string  `json:"model_dir"`
	WarmStart     string  `json:"warm_start,omitempty"`
	Rebuild       bool    `json:"rebuild"`
}

// Run is one training attempt.
type Run struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Params    Params    `json:"params"`
	Epoch     int       `json:"epoch"`
	BestEpoch int       `json:"best_epoch"`
	BestAUC   float64   `json:"best_auc"`
	ModelKey  string    `json:"model_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun starts a run in StateInitialized.
func NewRun(id string, params Params, now time.Time) *Run {
	return &Run{ID: id, State: StateInitialized, Params: params, CreatedAt: now, UpdatedAt: now}
}

// Transition moves the run to a new state.
func (r *Run) Transition(to State, now time.Time) error {
	if !CanTransition(r.State, to) {
		return errors.Newf(errors.ErrCodeInvalidRunTransition, "run %s cannot move from %s to %s", r.ID, r.State, to)
	}
	r.State = to
	r.UpdatedAt = now
	return nil
}

// Fail moves a non-terminal run to StateFailed and records cause.
func (r *Run) Fail(cause error, now time.Time) error {
	if err := r.Transition(StateFailed, now); err != nil {
		return err
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	return nil
}

// ObserveEpoch records epoch progress; improved marks a new best checkpoint.
func (r *Run) ObserveEpoch(epoch int, auc float64, improved bool, now time.Time) {
	r.Epoch = epoch
	if improved {
		r.BestEpoch = epoch
		r.BestAUC = auc
	}
	r.UpdatedAt = now
}

// EpochRecord is one per-epoch metrics row.
type EpochRecord struct {
	RunID      string             `json:"run_id"`
	Epoch      int                `json:"epoch"`
	Metrics    map[string]float64 `json:"metrics"`
	Improved   bool               `json:"improved"`
	RecordedAt time.Time          `json:"recorded_at"`
}

//Personal.AI order the ending
