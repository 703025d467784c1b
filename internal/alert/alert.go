// Package alert defines the security alert record and the sources it is read from.
package alert

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an alert identifier does not resolve to a record.
var ErrNotFound = errors.New("alert not found")

// Alert is a single security-operations alert as produced by an ingestion
// source. Records are read-only once loaded; the pipeline never mutates them.
type Alert struct {
	ID                    string    `json:"alert_id"`
	Timestamp             time.Time `json:"timestamp"`
	SourceIP              string    `json:"source_ip"`
	SourceCountry         string    `json:"source_country"`
	DestinationIP         string    `json:"destination_ip"`
	DestinationPort       int       `json:"destination_port"`
	Protocol              string    `json:"protocol"`
	FailedLoginAttempts   int       `json:"failed_login_attempts"`
	SuccessfulAfterFails  bool      `json:"successful_login_after_failures"`
	ProcessExecuted       string    `json:"process_executed"`
	ProcessHashKnown      bool      `json:"process_hash_known"`
	AdminEscalation       bool      `json:"admin_privilege_escalation"`
	OffHoursActivity      bool      `json:"off_hours_activity"`
	DataVolumeMB          float64   `json:"data_volume_mb"`
	ConnectionDurationSec float64   `json:"connection_duration_seconds"`
	UniqueDestinations    int       `json:"unique_destinations_count"`
	GeoImpossibleTravel   bool      `json:"geo_impossible_travel"`
	UserAgentAnomaly      bool      `json:"user_agent_anomaly"`
	ThreatIntelMatch      bool      `json:"threat_intel_match"`
	EncryptionProtocol    string    `json:"encryption_protocol"`
	LateralMovement       bool      `json:"lateral_movement_detected"`

	// Label is the ground-truth class, present on historical/training data only.
	Label string `json:"label,omitempty"`
}

// Source is a read-only stream of alert records keyed by identifier.
type Source interface {
	// Snapshot returns the current full set of alerts in source order.
	Snapshot(ctx context.Context) ([]Alert, error)

	// Get resolves a single alert by identifier. The boolean reports whether
	// the identifier was found; ErrNotFound is reserved for callers that need
	// a sentinel.
	Get(ctx context.Context, id string) (*Alert, bool, error)
}
