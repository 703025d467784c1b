// Package attribution ranks per-feature contribution scores into a
// normalized, analyst-readable explanation of one prediction.
package attribution

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/classify"
	"github.com/linnemanlabs/verdict/internal/feature"
)

// DefaultTopN is the number of top features exposed to narrative generation.
const DefaultTopN = 10

// Direction reports whether a feature pushed the prediction toward or away
// from the predicted class.
type Direction string

const (
	IncreasesRisk Direction = "increases_risk"
	DecreasesRisk Direction = "decreases_risk"
)

// FeatureContribution is one feature's share of the decision.
type FeatureContribution struct {
	Feature      string    `json:"feature"`
	HumanName    string    `json:"human_readable_name"`
	Score        float64   `json:"impact_score"`
	Direction    Direction `json:"direction"`
	Value        float64   `json:"feature_value"`
	Contribution float64   `json:"contribution_percentage"`
}

// Attribution is the full ranked decomposition of one prediction.
type Attribution struct {
	PredictedClass string                `json:"predicted_class"`
	BaseValue      float64               `json:"base_value"`
	FinalScore     float64               `json:"final_score"`
	Top            []FeatureContribution `json:"top_contributing_features"`
	All            []FeatureContribution `json:"all_features"`
}

// RawScores is what an attribution method produces for one vector: one signed
// score per feature, either a single array (binary/single-output methods) or
// one array per class, plus the per-class baseline expectations.
type RawScores struct {
	// PerClass holds one score array per class. Single-array methods populate
	// exactly one entry.
	PerClass [][]float64

	// BaseValues holds the expectation value per class; single-entry for
	// single-array methods.
	BaseValues []float64
}

// ForClass normalizes both output shapes to the scores and baseline for one
// class index.
func (r *RawScores) ForClass(idx int) ([]float64, float64, error) {
	if len(r.PerClass) == 0 {
		return nil, 0, fmt.Errorf("attribution returned no score arrays")
	}
	if len(r.PerClass) == 1 {
		// single-array output: treat as single-class
		return r.PerClass[0], r.baseValue(0), nil
	}
	if idx < 0 || idx >= len(r.PerClass) {
		return nil, 0, fmt.Errorf("class index %d out of range for %d classes", idx, len(r.PerClass))
	}
	return r.PerClass[idx], r.baseValue(idx), nil
}

func (r *RawScores) baseValue(idx int) float64 {
	if idx < len(r.BaseValues) {
		return r.BaseValues[idx]
	}
	return 0
}

// Attributor is the opaque per-feature contribution boundary.
type Attributor interface {
	Contributions(ctx context.Context, v feature.Vector) (*RawScores, error)
}

// Ranker turns raw contribution scores into ranked, normalized attributions.
type Ranker struct {
	attributor Attributor
	state      *feature.State
	topN       int
	logger     log.Logger
}

// NewRanker creates a ranker. topN <= 0 selects DefaultTopN.
func NewRanker(attributor Attributor, state *feature.State, topN int, logger log.Logger) *Ranker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Ranker{attributor: attributor, state: state, topN: topN, logger: logger}
}

// Explain produces the ranked attribution for one vector and its predicted
// label. Contribution percentages are normalized over the full feature set;
// ties on |score| break on technical feature name so ordering is stable.
func (r *Ranker) Explain(ctx context.Context, v feature.Vector, predictedLabel string) (*Attribution, error) {
	classIdx, ok := classify.ClassIndex(predictedLabel)
	if !ok {
		return nil, fmt.Errorf("unknown class label %q", predictedLabel)
	}

	raw, err := r.attributor.Contributions(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("attribution: %w", err)
	}

	scores, base, err := raw.ForClass(classIdx)
	if err != nil {
		return nil, err
	}
	if len(scores) != v.Schema.Len() {
		return nil, fmt.Errorf("attribution returned %d scores for %d features", len(scores), v.Schema.Len())
	}

	all := make([]FeatureContribution, len(scores))
	var total, sum float64
	for i, score := range scores {
		name := v.Schema.Columns[i]
		dir := DecreasesRisk
		if score > 0 {
			dir = IncreasesRisk
		}
		all[i] = FeatureContribution{
			Feature:   name,
			HumanName: r.state.HumanName(name),
			Score:     score,
			Direction: dir,
			Value:     v.Values[i],
		}
		total += math.Abs(score)
		sum += score
	}

	if total > 0 {
		for i := range all {
			all[i].Contribution = math.Abs(all[i].Score) / total * 100
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		ai, aj := math.Abs(all[i].Score), math.Abs(all[j].Score)
		if ai != aj {
			return ai > aj
		}
		return all[i].Feature < all[j].Feature
	})

	n := r.topN
	if n > len(all) {
		n = len(all)
	}

	return &Attribution{
		PredictedClass: predictedLabel,
		BaseValue:      base,
		FinalScore:     base + sum,
		Top:            all[:n],
		All:            all,
	}, nil
}
