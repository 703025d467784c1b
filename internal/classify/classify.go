// Package classify wraps an opaque trained classifier and normalizes its
// output into verdicts with full class probability distributions.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/linnemanlabs/verdict/internal/feature"
)

// ErrModelUnavailable is returned when no classifier has been loaded.
var ErrModelUnavailable = errors.New("classifier model unavailable")

// Labels is the closed verdict set, in class-index order. The order matches
// the numeric label encoding used at training time.
var Labels = []string{"benign", "suspicious", "malicious"}

// ClassIndex returns the class index for a verdict label.
func ClassIndex(label string) (int, bool) {
	for i, l := range Labels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

// Prediction is one alert's classification outcome.
type Prediction struct {
	Verdict       string             `json:"verdict"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Model is the opaque classifier boundary. Both methods are order-preserving:
// row i of the output corresponds to row i of the input.
type Model interface {
	// Predict returns one discrete label per input vector.
	Predict(ctx context.Context, vectors []feature.Vector) ([]string, error)

	// PredictProba returns one probability per class per input vector,
	// in Labels order.
	PredictProba(ctx context.Context, vectors []feature.Vector) ([][]float64, error)
}

// Adapter normalizes raw model output into Predictions. Model failures
// propagate unmodified; there is no retry.
type Adapter struct {
	model Model
}

// NewAdapter wraps a model. A nil model yields ErrModelUnavailable on use.
func NewAdapter(model Model) *Adapter {
	return &Adapter{model: model}
}

// PredictOne classifies a single vector and returns a single Prediction.
func (a *Adapter) PredictOne(ctx context.Context, v feature.Vector) (*Prediction, error) {
	preds, err := a.Predict(ctx, []feature.Vector{v})
	if err != nil {
		return nil, err
	}
	return preds[0], nil
}

// Predict classifies a batch, one Prediction per input row in input order.
// Confidence is the maximum class probability; the probability map is keyed
// by the full label set.
func (a *Adapter) Predict(ctx context.Context, vectors []feature.Vector) ([]*Prediction, error) {
	if a.model == nil {
		return nil, ErrModelUnavailable
	}

	labels, err := a.model.Predict(ctx, vectors)
	if err != nil {
		return nil, err
	}
	probas, err := a.model.PredictProba(ctx, vectors)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(vectors) || len(probas) != len(vectors) {
		return nil, fmt.Errorf("classifier returned %d labels and %d probability rows for %d inputs",
			len(labels), len(probas), len(vectors))
	}

	preds := make([]*Prediction, len(vectors))
	for i := range vectors {
		row := probas[i]
		if len(row) != len(Labels) {
			return nil, fmt.Errorf("row %d: classifier returned %d probabilities for %d classes",
				i, len(row), len(Labels))
		}

		probs := make(map[string]float64, len(Labels))
		confidence := row[0]
		for j, label := range Labels {
			probs[label] = row[j]
			if row[j] > confidence {
				confidence = row[j]
			}
		}

		preds[i] = &Prediction{
			Verdict:       labels[i],
			Confidence:    confidence,
			Probabilities: probs,
		}
	}
	return preds, nil
}
