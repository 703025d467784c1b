// Package engine drives the analysis pipeline continuously: it polls the
// alert source on a fixed interval, analyzes alerts not yet in the processed
// ledger, dispatches notifications by severity, and durably marks each
// handled identifier.
package engine

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/analysis"
	"github.com/linnemanlabs/verdict/internal/ledger"
	"github.com/linnemanlabs/verdict/internal/notify"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 60 * time.Second

// sendTimeout bounds notification delivery. Sends run detached from the loop
// context so a shutdown mid-batch cannot abort them; once an alert is
// ledger-marked it will never be retried, so its notifications must land.
const sendTimeout = 30 * time.Second

// Engine runs the real-time processing loop. A single Engine is the only
// writer of its ledger; one poll cycle completes fully before the next
// starts.
type Engine struct {
	source       alert.Source
	orchestrator *analysis.Orchestrator
	ledger       *ledger.Ledger
	router       *notify.Router
	interval     time.Duration
	metrics      analysis.Hooks
	logger       log.Logger
}

// New wires the engine. interval <= 0 selects DefaultInterval.
func New(
	source alert.Source,
	orchestrator *analysis.Orchestrator,
	led *ledger.Ledger,
	router *notify.Router,
	interval time.Duration,
	metrics analysis.Hooks,
	logger log.Logger,
) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		source:       source,
		orchestrator: orchestrator,
		ledger:       led,
		router:       router,
		interval:     interval,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run executes poll cycles until ctx is cancelled. An in-flight alert is
// always finished (notified and ledger-marked) before Run returns; the loop
// only stops between alerts or between ticks.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info(ctx, "real-time engine started",
		"interval", e.interval.String(),
		"ledger_size", e.ledger.Len(),
	)

	timer := time.NewTimer(0) // first cycle runs immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info(context.Background(), "real-time engine stopped", "ledger_size", e.ledger.Len())
			return
		case <-timer.C:
		}

		e.tick(ctx)
		timer.Reset(e.interval)
	}
}

// tick runs one full poll cycle: snapshot, discover, analyze, notify, mark.
func (e *Engine) tick(ctx context.Context) {
	// deferred suspicious notifications go out when the batch is drained,
	// even if cancellation cut the batch short
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		e.router.Flush(flushCtx)
	}()

	snapshot, err := e.source.Snapshot(ctx)
	if err != nil {
		// a broken source is an empty batch for this tick, never loop-fatal
		e.logger.Error(ctx, err, "alert source snapshot failed, skipping tick")
		e.metrics.OnTickSafe(0)
		return
	}

	var fresh []alert.Alert
	for _, al := range snapshot {
		if !e.ledger.Seen(al.ID) {
			fresh = append(fresh, al)
		}
	}
	e.metrics.OnTickSafe(len(fresh))

	if len(fresh) == 0 {
		return
	}

	e.logger.Info(ctx, "found new alerts", "count", len(fresh), "snapshot", len(snapshot))

	for i := range fresh {
		// stop between alerts on cancellation; never mid-alert
		if ctx.Err() != nil {
			e.logger.Info(context.Background(), "cancelled mid-batch",
				"processed", i, "remaining", len(fresh)-i)
			return
		}
		e.process(ctx, &fresh[i])
	}
}

// process handles one alert end to end. A failure leaves the alert unmarked
// so the next tick retries it; it never aborts the batch.
func (e *Engine) process(ctx context.Context, al *alert.Alert) {
	result, err := e.orchestrator.AnalyzeAlert(ctx, al)
	if err != nil {
		e.metrics.OnAlertErrorSafe()
		e.logger.Error(ctx, err, "alert processing failed, will retry next tick", "alert_id", al.ID)
		return
	}

	// notify on a detached context: the in-flight alert finishes in full even
	// when cancellation arrived while it was being analyzed
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	e.router.Dispatch(sendCtx, result)
	cancel()

	// notification failures were already absorbed by the router; the alert
	// counts as processed either way
	if err := e.ledger.Mark(al.ID); err != nil {
		e.metrics.OnAlertErrorSafe()
		e.logger.Error(ctx, err, "ledger append failed, alert will be reprocessed", "alert_id", al.ID)
	}
}
