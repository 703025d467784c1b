package alert

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// requiredColumns is the fixed alert schema expected in tabular sources.
var requiredColumns = []string{
	"alert_id", "timestamp", "source_ip", "source_country",
	"destination_ip", "destination_port", "protocol",
	"failed_login_attempts", "successful_login_after_failures",
	"process_executed", "process_hash_known", "admin_privilege_escalation",
	"off_hours_activity", "data_volume_mb", "connection_duration_seconds",
	"unique_destinations_count", "geo_impossible_travel",
	"user_agent_anomaly", "threat_intel_match", "encryption_protocol",
	"lateral_movement_detected",
}

// CSVSource reads alerts from a CSV file with a header row. Each Snapshot
// re-reads the file so rows appended by the ingestion side show up on the
// next poll.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source backed by the given CSV file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Snapshot reads the full alert file and returns records in file order.
func (s *CSVSource) Snapshot(ctx context.Context) ([]Alert, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open alert source: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("alert source missing column %q", name)
		}
	}

	var alerts []Alert
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		al, err := parseRecord(record, col)
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", record[col["alert_id"]], err)
		}
		alerts = append(alerts, *al)
	}

	return alerts, nil
}

// Get resolves a single alert by identifier.
func (s *CSVSource) Get(ctx context.Context, id string) (*Alert, bool, error) {
	alerts, err := s.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range alerts {
		if alerts[i].ID == id {
			return &alerts[i], true, nil
		}
	}
	return nil, false, nil
}

func parseRecord(record []string, col map[string]int) (*Alert, error) {
	get := func(name string) string { return strings.TrimSpace(record[col[name]]) }

	ts, err := parseTimestamp(get("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	al := &Alert{
		ID:                 get("alert_id"),
		Timestamp:          ts,
		SourceIP:           get("source_ip"),
		SourceCountry:      get("source_country"),
		DestinationIP:      get("destination_ip"),
		Protocol:           get("protocol"),
		ProcessExecuted:    get("process_executed"),
		EncryptionProtocol: get("encryption_protocol"),
	}

	if al.DestinationPort, err = strconv.Atoi(get("destination_port")); err != nil {
		return nil, fmt.Errorf("destination_port: %w", err)
	}
	if al.FailedLoginAttempts, err = strconv.Atoi(get("failed_login_attempts")); err != nil {
		return nil, fmt.Errorf("failed_login_attempts: %w", err)
	}
	if al.UniqueDestinations, err = strconv.Atoi(get("unique_destinations_count")); err != nil {
		return nil, fmt.Errorf("unique_destinations_count: %w", err)
	}
	if al.DataVolumeMB, err = strconv.ParseFloat(get("data_volume_mb"), 64); err != nil {
		return nil, fmt.Errorf("data_volume_mb: %w", err)
	}
	if al.ConnectionDurationSec, err = strconv.ParseFloat(get("connection_duration_seconds"), 64); err != nil {
		return nil, fmt.Errorf("connection_duration_seconds: %w", err)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"successful_login_after_failures", &al.SuccessfulAfterFails},
		{"process_hash_known", &al.ProcessHashKnown},
		{"admin_privilege_escalation", &al.AdminEscalation},
		{"off_hours_activity", &al.OffHoursActivity},
		{"geo_impossible_travel", &al.GeoImpossibleTravel},
		{"user_agent_anomaly", &al.UserAgentAnomaly},
		{"threat_intel_match", &al.ThreatIntelMatch},
		{"lateral_movement_detected", &al.LateralMovement},
	}
	for _, b := range bools {
		v, err := parseBool(record[col[b.name]])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = v
	}

	// label is optional and only present on historical/training exports
	if idx, ok := col["label"]; ok && idx < len(record) {
		al.Label = strings.TrimSpace(record[idx])
	}

	return al, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized boolean %q", s)
}
