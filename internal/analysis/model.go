// Package analysis composes the alert pipeline: feature transform,
// classification, attribution ranking, and narrative generation, producing
// one complete analysis per alert.
package analysis

import (
	"time"

	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/narrative"
	"github.com/linnemanlabs/verdict/internal/policy"
)

// Complete is the end-to-end analysis result for a single alert.
type Complete struct {
	ID            string                   `json:"id"`
	AlertID       string                   `json:"alert_id"`
	Verdict       string                   `json:"verdict"`
	Confidence    float64                  `json:"confidence"`
	Probabilities map[string]float64       `json:"probabilities"`
	Attribution   *attribution.Attribution `json:"attribution"`
	Explanation   string                   `json:"explanation"`
	Source        narrative.Source         `json:"explanation_source"`
	Action        policy.Action            `json:"recommended_action"`
	CreatedAt     time.Time                `json:"created_at"`
	Duration      float64                  `json:"duration_seconds"`
}
