package ppinet

import (
	"math"
	"sort"
)

// EpochMetrics is one epoch's evaluation record.
type EpochMetrics struct {
	Epoch         int     `json:"epoch"`
	TrainLoss     float64 `json:"train_loss"`
	TrainAccuracy float64 `json:"train_accuracy"`
	TrainAUC      float64 `json:"train_auc"`
	TestLoss      float64 `json:"test_loss"`
	TestAccuracy  float64 `json:"test_accuracy"`
	TestAUC       float64 `json:"test_auc"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
	LearningRate  float64 `json:"learning_rate"`
}

// Map flattens the metrics for checkpoint metadata and run records.
func (m EpochMetrics) Map() map[string]float64 {
	return map[string]float64{
		"epoch":          float64(m.Epoch),
		"train_loss":     m.TrainLoss,
		"train_accuracy": m.TrainAccuracy,
		"train_auc":      m.TrainAUC,
		"test_loss":      m.TestLoss,
		"test_accuracy":  m.TestAccuracy,
		"test_auc":       m.TestAUC,
		"precision":      m.Precision,
		"recall":         m.Recall,
		"f1":             m.F1,
		"learning_rate":  m.LearningRate,
	}
}

// Improves reports whether m should replace best as the retained
// checkpoint: strictly higher test AUC, or equal AUC with strictly lower
// test loss.  A nil best is always improved upon.
func (m EpochMetrics) Improves(best *EpochMetrics) bool {
	if best == nil {
		return true
	}
	if m.TestAUC != best.TestAUC {
		return m.TestAUC > best.TestAUC
	}
	return m.TestLoss < best.TestLoss
}

// Confusion counts thresholded predictions.
type Confusion struct {
	TP, FP, TN, FN int
}

// Classify thresholds probs (p >= threshold is positive) against labels.
func Classify(probs []float64, labels []float32, threshold float64) Confusion {
	var c Confusion
	for i, p := range probs {
		pos := p >= threshold
		switch {
		case pos && labels[i] >= 0.5:
			c.TP++
		case pos:
			c.FP++
		case labels[i] >= 0.5:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.TP+c.TN+c.FP+c.FN)
}

func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

func (c Confusion) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// AUC is the area under the ROC curve computed from the Mann-Whitney rank
// statistic with tied scores sharing their average rank.  It is 0.5 when
// either class is absent.
func AUC(scores []float64, labels []float32) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	var pos, neg int
	var rankSum float64
	for i := 0; i < n; {
		j := i
		for j < n && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if labels[idx[k]] >= 0.5 {
				pos++
				rankSum += avg
			} else {
				neg++
			}
		}
		i = j
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	auc := (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
	if math.IsNaN(auc) {
		return 0.5
	}
	return auc
}

//Personal.AI order the ending
