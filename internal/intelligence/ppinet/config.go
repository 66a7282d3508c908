// Package ppinet implements the pair classifier: a feed-forward network over
// symmetric pair features with a sigmoid interaction head and a softmax
// interaction-type head, its optimizer, evaluation metrics and checkpoint
// codec.
package ppinet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// InteractionType labels the type head's classes.
type InteractionType string

const (
	TypeBinding    InteractionType = "binding"
	TypeRegulatory InteractionType = "regulatory"
	TypeCatalytic  InteractionType = "catalytic"
	TypeStructural InteractionType = "structural"
	TypeOther      InteractionType = "other"
)

// InteractionTypes is the type head's output order.
var InteractionTypes = []InteractionType{TypeBinding, TypeRegulatory, TypeCatalytic, TypeStructural, TypeOther}

// Config describes the network shape.
type Config struct {
	InputDim    int     `json:"input_dim"`
	HiddenDims  []int   `json:"hidden_dims"`
	Dropout     float64 `json:"dropout"`
	TypeClasses int     `json:"type_classes"`
}

// Validate checks the shape parameters.
func (c Config) Validate() error {
	if c.InputDim <= 0 {
		return errors.InvalidParam("network input dim must be positive")
	}
	for i, h := range c.HiddenDims {
		if h <= 0 {
			return errors.InvalidParam(fmt.Sprintf("hidden layer %d width must be positive", i))
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 || math.IsNaN(c.Dropout) {
		return errors.InvalidParam("dropout must be in [0, 1)")
	}
	if c.TypeClasses < 0 {
		return errors.InvalidParam("type classes must be >= 0")
	}
	return nil
}

// Architecture renders the layer layout, e.g. "mlp:3840-512-256-128-1+5".
func (c Config) Architecture() string {
	var sb strings.Builder
	sb.WriteString("mlp:")
	sb.WriteString(strconv.Itoa(c.InputDim))
	for _, h := range c.HiddenDims {
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(h))
	}
	sb.WriteString("-1")
	if c.TypeClasses > 0 {
		sb.WriteByte('+')
		sb.WriteString(strconv.Itoa(c.TypeClasses))
	}
	return sb.String()
}

//Personal.AI order the ending
