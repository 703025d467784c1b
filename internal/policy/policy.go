// Package policy maps a verdict and confidence to a recommended analyst
// action. The mapping is a pure function with no I/O.
package policy

// Action is the recommended follow-up for an analyzed alert.
type Action string

const (
	InvestigateImmediately Action = "investigate_immediately"
	InvestigateSoon        Action = "investigate_soon"
	MonitorClosely         Action = "monitor_closely"
	MarkFalsePositive      Action = "mark_false_positive"
	ReviewLater            Action = "review_later"
)

// DefaultConfidenceThreshold splits high-confidence from low-confidence
// actions when no threshold is configured.
const DefaultConfidenceThreshold = 0.8

// Policy holds the confidence threshold the action mapping pivots on.
type Policy struct {
	threshold float64
}

// New creates a policy. threshold <= 0 selects DefaultConfidenceThreshold.
func New(threshold float64) Policy {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return Policy{threshold: threshold}
}

// Action returns the recommended action for a verdict and confidence.
// Confidence exactly at the threshold takes the high-confidence branch.
// Verdicts outside the known set fall back to review_later.
func (p Policy) Action(verdict string, confidence float64) Action {
	switch verdict {
	case "malicious":
		if confidence >= p.threshold {
			return InvestigateImmediately
		}
		return InvestigateSoon
	case "suspicious":
		return MonitorClosely
	case "benign":
		if confidence >= p.threshold {
			return MarkFalsePositive
		}
		return ReviewLater
	default:
		return ReviewLater
	}
}
