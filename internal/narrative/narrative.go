// Package narrative turns a prediction and its attribution into prose an
// analyst can read. It delegates to an external text-generation provider and
// degrades to a deterministic offline template when that provider fails.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/classify"
	"github.com/linnemanlabs/verdict/internal/policy"
)

// Source records which path produced the explanation text.
type Source string

const (
	SourceProvider Source = "claude"
	SourceFallback Source = "fallback"
)

// Explanation is the analyst-facing output for one alert.
type Explanation struct {
	Text       string        `json:"explanation"`
	Action     policy.Action `json:"recommended_action"`
	Source     Source        `json:"source"`
	Model      string        `json:"model,omitempty"`
	TokensUsed int           `json:"tokens_used,omitempty"`
}

// Request is a bounded text-generation request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the provider's generated text plus usage metadata.
type Response struct {
	Text         string
	Model        string
	OutputTokens int
}

// Provider is the external text-generation boundary. It may fail; the
// Generator absorbs every failure.
type Provider interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Generator builds explanation prose. Generate never returns an error: any
// provider failure lands on the pure template fallback.
type Generator struct {
	provider    Provider
	policy      policy.Policy
	maxTokens   int
	temperature float64
	logger      log.Logger
}

// NewGenerator creates a generator. A nil provider always uses the fallback.
func NewGenerator(provider Provider, pol policy.Policy, maxTokens int, temperature float64, logger log.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{
		provider:    provider,
		policy:      pol,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// Generate produces the explanation for one analyzed alert. The recommended
// action is always derived from the policy, regardless of which narrative
// path ran.
func (g *Generator) Generate(ctx context.Context, pred *classify.Prediction, attr *attribution.Attribution, al *alert.Alert) *Explanation {
	action := g.policy.Action(pred.Verdict, pred.Confidence)

	if g.provider == nil {
		return g.fallback(pred, attr, action)
	}

	resp, err := g.provider.Send(ctx, &Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(pred, attr, al),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Warn(ctx, "narrative provider failed, using fallback template", "error", err)
		return g.fallback(pred, attr, action)
	}
	if strings.TrimSpace(resp.Text) == "" {
		g.logger.Warn(ctx, "narrative provider returned empty text, using fallback template")
		return g.fallback(pred, attr, action)
	}

	return &Explanation{
		Text:       resp.Text,
		Action:     action,
		Source:     SourceProvider,
		Model:      resp.Model,
		TokensUsed: resp.OutputTokens,
	}
}

// fallback renders the deterministic offline template. It tolerates malformed
// or missing attribution input and never fails.
func (g *Generator) fallback(pred *classify.Prediction, attr *attribution.Attribution, action policy.Action) *Explanation {
	verdict := "UNKNOWN"
	var confidence float64
	if pred != nil {
		verdict = strings.ToUpper(pred.Verdict)
		confidence = pred.Confidence
	}

	factors := "no dominant factors identified"
	if attr != nil && len(attr.Top) > 0 {
		names := make([]string, 0, 3)
		for _, f := range attr.Top {
			names = append(names, f.HumanName)
			if len(names) == 3 {
				break
			}
		}
		factors = strings.Join(names, ", ")
	}

	closing := "Monitor for suspicious activity."
	if pred != nil && pred.Verdict == "malicious" {
		closing = "Immediate investigation recommended."
	}

	text := fmt.Sprintf("This alert is classified as %s with %.0f%% confidence. Key factors: %s. %s",
		verdict, confidence*100, factors, closing)

	return &Explanation{
		Text:   text,
		Action: action,
		Source: SourceFallback,
	}
}
