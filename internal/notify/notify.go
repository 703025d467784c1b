// Package notify fans analysis results out to notification channels per
// severity routing rules.
package notify

import (
	"context"

	"github.com/linnemanlabs/verdict/internal/analysis"
)

// Notifier is one delivery channel. Delivery mechanics are opaque to the
// pipeline; errors are reported but never fail processing.
type Notifier interface {
	Name() string
	Send(ctx context.Context, result *analysis.Complete) error
}
