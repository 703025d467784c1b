package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds service-level configuration for the verdict server.
// Pipeline components receive the fields they need at wiring time.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	AlertSourcePath   string
	AlertSourceFormat string
	TransformState    string
	LedgerPath        string
	PollSeconds       int

	ScoringURL string

	ClaudeAPIKey         string
	ClaudeModel          string
	NarrativeMaxTokens   int
	NarrativeTemperature float64
	ConfidenceThreshold  float64
	AttributionTopN      int
	DatabaseURL          string
	SlackWebhookURL      string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFrom            string
	EmailTo              string
	SuspiciousChannels   string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
	fs.StringVar(&c.AlertSourcePath, "alert-source-path", "", "path to the alert feed file")
	fs.StringVar(&c.AlertSourceFormat, "alert-source-format", "csv", "alert feed format (csv or json)")
	fs.StringVar(&c.TransformState, "transform-state", "", "path to the fitted feature transform state file")
	fs.StringVar(&c.LedgerPath, "ledger-path", "processed_alerts.log", "path to the processed-alerts ledger file")
	fs.IntVar(&c.PollSeconds, "poll-seconds", 60, "seconds between alert feed polls (1..3600)")
	fs.StringVar(&c.ScoringURL, "scoring-url", "", "base URL of the model scoring service")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider (empty = template narratives only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.IntVar(&c.NarrativeMaxTokens, "narrative-max-tokens", 300, "token budget for generated narratives")
	fs.Float64Var(&c.NarrativeTemperature, "narrative-temperature", 0.3, "sampling temperature for generated narratives")
	fs.Float64Var(&c.ConfidenceThreshold, "confidence-threshold", 0.8, "confidence threshold separating urgent from routine actions (0..1)")
	fs.IntVar(&c.AttributionTopN, "attribution-top-n", 10, "number of top contributing features to report")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP host for email notifications (empty = email disabled)")
	fs.IntVar(&c.SMTPPort, "smtp-port", 587, "SMTP port for email notifications")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP password")
	fs.StringVar(&c.EmailFrom, "email-from", "", "sender address for email notifications")
	fs.StringVar(&c.EmailTo, "email-to", "", "comma-separated recipient addresses for email notifications")
	fs.StringVar(&c.SuspiciousChannels, "suspicious-channels", "slack", "comma-separated channels that receive deferred suspicious-alert digests")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.AlertSourcePath == "" {
		errs = append(errs, errors.New("ALERT_SOURCE_PATH is required"))
	}
	if c.AlertSourceFormat != "csv" && c.AlertSourceFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid ALERT_SOURCE_FORMAT %q (must be csv or json)", c.AlertSourceFormat))
	}
	if c.TransformState == "" {
		errs = append(errs, errors.New("TRANSFORM_STATE is required"))
	}
	if c.LedgerPath == "" {
		errs = append(errs, errors.New("LEDGER_PATH is required"))
	}
	if c.PollSeconds <= 0 || c.PollSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid POLL_SECONDS %d (must be 1..3600)", c.PollSeconds))
	}

	// Scoring service backs both classification and attribution
	if c.ScoringURL == "" {
		errs = append(errs, errors.New("SCORING_URL is required"))
	}

	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.NarrativeMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("invalid NARRATIVE_MAX_TOKENS %d (must be positive)", c.NarrativeMaxTokens))
	}
	if c.NarrativeTemperature < 0 || c.NarrativeTemperature > 1 {
		errs = append(errs, fmt.Errorf("invalid NARRATIVE_TEMPERATURE %g (must be 0..1)", c.NarrativeTemperature))
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid CONFIDENCE_THRESHOLD %g (must be in (0..1])", c.ConfidenceThreshold))
	}
	if c.AttributionTopN <= 0 {
		errs = append(errs, fmt.Errorf("invalid ATTRIBUTION_TOP_N %d (must be positive)", c.AttributionTopN))
	}

	if c.SMTPHost != "" {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", c.SMTPPort))
		}
		if c.EmailFrom == "" {
			errs = append(errs, errors.New("EMAIL_FROM is required when SMTP_HOST is set"))
		}
		if c.EmailTo == "" {
			errs = append(errs, errors.New("EMAIL_TO is required when SMTP_HOST is set"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
