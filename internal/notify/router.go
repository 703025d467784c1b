package notify

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/analysis"
)

// Router dispatches analysis results to channels by verdict severity:
// malicious goes to every channel immediately, suspicious to the configured
// subset deferred until the end of the current batch, benign to none.
type Router struct {
	channels   []Notifier
	suspicious map[string]bool // channel names eligible for suspicious verdicts
	metrics    analysis.Hooks
	logger     log.Logger

	mu      sync.Mutex
	pending []*analysis.Complete
}

// NewRouter creates a router over the given channels. suspiciousChannels
// names the subset that also receives suspicious verdicts.
func NewRouter(channels []Notifier, suspiciousChannels []string, metrics analysis.Hooks, logger log.Logger) *Router {
	if logger == nil {
		logger = log.Nop()
	}
	subset := make(map[string]bool, len(suspiciousChannels))
	for _, name := range suspiciousChannels {
		subset[name] = true
	}
	return &Router{
		channels:   channels,
		suspicious: subset,
		metrics:    metrics,
		logger:     logger,
	}
}

// Dispatch routes one result. Malicious results are delivered immediately to
// all channels; suspicious results are queued for the next Flush; benign
// results are dropped. Delivery errors are logged and counted, never
// propagated.
func (r *Router) Dispatch(ctx context.Context, result *analysis.Complete) {
	switch result.Verdict {
	case "malicious":
		r.deliver(ctx, result, r.channels)
	case "suspicious":
		r.mu.Lock()
		r.pending = append(r.pending, result)
		r.mu.Unlock()
	default:
		// benign alerts are not dispatched
	}
}

// Flush delivers the deferred suspicious results queued since the previous
// Flush. The engine calls it once per drained batch.
func (r *Router) Flush(ctx context.Context) {
	r.mu.Lock()
	queued := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(queued) == 0 {
		return
	}

	var targets []Notifier
	for _, ch := range r.channels {
		if r.suspicious[ch.Name()] {
			targets = append(targets, ch)
		}
	}

	for _, result := range queued {
		r.deliver(ctx, result, targets)
	}
}

func (r *Router) deliver(ctx context.Context, result *analysis.Complete, targets []Notifier) {
	for _, ch := range targets {
		if err := ch.Send(ctx, result); err != nil {
			r.metrics.OnNotificationSafe(ch.Name(), "error")
			r.logger.Error(ctx, err, "notification delivery failed",
				"channel", ch.Name(),
				"alert_id", result.AlertID,
				"verdict", result.Verdict,
			)
			continue
		}
		r.metrics.OnNotificationSafe(ch.Name(), "ok")
		r.logger.Info(ctx, "notification dispatched",
			"channel", ch.Name(),
			"alert_id", result.AlertID,
			"verdict", result.Verdict,
		)
	}
}
