package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/classify"
	"github.com/linnemanlabs/verdict/internal/feature"
	"github.com/linnemanlabs/verdict/internal/narrative"
)

var tracer = otel.Tracer("github.com/linnemanlabs/verdict/internal/analysis")

// Orchestrator runs one alert through the full pipeline:
// transform, predict, attribute, narrate, assemble.
type Orchestrator struct {
	source    alert.Source
	extractor *feature.Extractor
	adapter   *classify.Adapter
	ranker    *attribution.Ranker
	generator *narrative.Generator
	store     Store
	metrics   Hooks
	logger    log.Logger
}

// NewOrchestrator wires the pipeline components.
func NewOrchestrator(
	source alert.Source,
	extractor *feature.Extractor,
	adapter *classify.Adapter,
	ranker *attribution.Ranker,
	generator *narrative.Generator,
	store Store,
	metrics Hooks,
	logger log.Logger,
) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		source:    source,
		extractor: extractor,
		adapter:   adapter,
		ranker:    ranker,
		generator: generator,
		store:     store,
		metrics:   metrics,
		logger:    logger,
	}
}

// Analyze resolves an alert by identifier and analyzes it. Returns
// alert.ErrNotFound when the identifier is absent from the source.
func (o *Orchestrator) Analyze(ctx context.Context, alertID string) (*Complete, error) {
	al, ok, err := o.source.Get(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("resolve alert %s: %w", alertID, err)
	}
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, alert.ErrNotFound)
	}
	return o.AnalyzeAlert(ctx, al)
}

// AnalyzeAlert analyzes a record the caller already holds. Narrative failures
// are absorbed by the generator's fallback; transform, classification, and
// attribution failures surface to the caller.
func (o *Orchestrator) AnalyzeAlert(ctx context.Context, al *alert.Alert) (*Complete, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("verdict.alert.id", al.ID),
	))
	defer span.End()

	L := o.logger.With("alert_id", al.ID)

	vec, err := o.extractor.TransformOne(ctx, al)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transform alert %s: %w", al.ID, err)
	}

	pred, err := o.adapter.PredictOne(ctx, vec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("classify alert %s: %w", al.ID, err)
	}

	attr, err := o.ranker.Explain(ctx, vec, pred.Verdict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("attribute alert %s: %w", al.ID, err)
	}

	expl := o.generator.Generate(ctx, pred, attr, al)

	span.SetAttributes(
		attribute.String("verdict.analysis.verdict", pred.Verdict),
		attribute.Float64("verdict.analysis.confidence", pred.Confidence),
		attribute.String("verdict.analysis.action", string(expl.Action)),
		attribute.String("verdict.narrative.source", string(expl.Source)),
	)

	result := &Complete{
		ID:            ulid.Make().String(),
		AlertID:       al.ID,
		Verdict:       pred.Verdict,
		Confidence:    pred.Confidence,
		Probabilities: pred.Probabilities,
		Attribution:   attr,
		Explanation:   expl.Text,
		Source:        expl.Source,
		Action:        expl.Action,
		CreatedAt:     start,
		Duration:      time.Since(start).Seconds(),
	}

	if o.store != nil {
		if err := o.store.Put(ctx, result); err != nil {
			L.Error(ctx, err, "failed to persist analysis", "analysis_id", result.ID)
		}
	}

	o.metrics.onAnalysis(result)

	L.Info(ctx, "analysis complete",
		"analysis_id", result.ID,
		"verdict", result.Verdict,
		"confidence", result.Confidence,
		"action", result.Action,
		"narrative_source", result.Source,
		"duration", result.Duration,
	)

	return result, nil
}

// Hooks decouples the orchestrator and engine from the metrics backend.
type Hooks struct {
	OnAnalysis     func(result *Complete)
	OnTick         func(newAlerts int)
	OnAlertError   func()
	OnNotification func(channel, outcome string)
}

func (h Hooks) onAnalysis(r *Complete) {
	if h.OnAnalysis != nil {
		h.OnAnalysis(r)
	}
}

// OnTickSafe records a poll tick if a hook is wired.
func (h Hooks) OnTickSafe(newAlerts int) {
	if h.OnTick != nil {
		h.OnTick(newAlerts)
	}
}

// OnAlertErrorSafe records a per-alert processing failure if a hook is wired.
func (h Hooks) OnAlertErrorSafe() {
	if h.OnAlertError != nil {
		h.OnAlertError()
	}
}

// OnNotificationSafe records a notification attempt if a hook is wired.
func (h Hooks) OnNotificationSafe(channel, outcome string) {
	if h.OnNotification != nil {
		h.OnNotification(channel, outcome)
	}
}
