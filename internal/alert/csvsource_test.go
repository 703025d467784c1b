package alert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const csvHeader = "alert_id,timestamp,source_ip,source_country,destination_ip,destination_port,protocol," +
	"failed_login_attempts,successful_login_after_failures,process_executed,process_hash_known," +
	"admin_privilege_escalation,off_hours_activity,data_volume_mb,connection_duration_seconds," +
	"unique_destinations_count,geo_impossible_travel,user_agent_anomaly,threat_intel_match," +
	"encryption_protocol,lateral_movement_detected,label"

func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.csv")
	content := csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCSVSource_Snapshot(t *testing.T) {
	t.Parallel()

	path := writeCSV(t,
		"ALERT-1,2026-03-02T09:30:00,10.0.0.5,US,10.0.1.9,443,HTTPS,0,false,chrome.exe,true,false,false,12.5,120,2,false,false,false,TLS1.3,false,benign",
		"ALERT-2,2026-03-02 23:10:00,203.0.113.7,KP,10.0.1.3,3389,RDP,47,TRUE,psexec.exe,false,yes,1,850.25,3600,25,true,true,true,none,true,malicious",
	)
	src := NewCSVSource(path)

	alerts, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}

	a := alerts[0]
	if a.ID != "ALERT-1" || a.DestinationPort != 443 || a.Protocol != "HTTPS" {
		t.Errorf("alert 1 = %+v, fields misparsed", a)
	}
	if !a.Timestamp.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v, want 2026-03-02T09:30:00", a.Timestamp)
	}
	if a.Label != "benign" {
		t.Errorf("label = %q, want benign", a.Label)
	}

	b := alerts[1]
	if b.FailedLoginAttempts != 47 || !b.SuccessfulAfterFails || !b.AdminEscalation {
		t.Errorf("alert 2 = %+v, bool/int coercion failed", b)
	}
	if !b.OffHoursActivity || !b.ThreatIntelMatch || !b.LateralMovement {
		t.Errorf("alert 2 = %+v, mixed-case booleans misparsed", b)
	}
	if b.DataVolumeMB != 850.25 {
		t.Errorf("data volume = %g, want 850.25", b.DataVolumeMB)
	}
}

func TestCSVSource_SnapshotPicksUpAppendedRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t,
		"ALERT-1,2026-03-02T09:30:00,10.0.0.5,US,10.0.1.9,443,HTTPS,0,false,chrome.exe,true,false,false,12.5,120,2,false,false,false,TLS1.3,false,",
	)
	src := NewCSVSource(path)

	first, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d alerts, want 1", len(first))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	_, err = f.WriteString("ALERT-2,2026-03-02T10:00:00,10.0.0.6,DE,10.0.1.9,22,SSH,3,false,sshd,true,false,false,1.5,30,1,false,false,false,none,false,\n")
	if err != nil {
		t.Fatalf("append row: %v", err)
	}
	_ = f.Close()

	second, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("got %d alerts after append, want 2", len(second))
	}
}

func TestCSVSource_Get(t *testing.T) {
	t.Parallel()

	path := writeCSV(t,
		"ALERT-1,2026-03-02T09:30:00,10.0.0.5,US,10.0.1.9,443,HTTPS,0,false,chrome.exe,true,false,false,12.5,120,2,false,false,false,TLS1.3,false,",
	)
	src := NewCSVSource(path)

	al, ok, err := src.Get(context.Background(), "ALERT-1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, want found", ok, err)
	}
	if al.ID != "ALERT-1" {
		t.Errorf("ID = %q, want ALERT-1", al.ID)
	}

	_, ok, err = src.Get(context.Background(), "ALERT-404")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get(ALERT-404) found = true, want false")
	}
}

func TestCSVSource_MissingColumn(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alerts.csv")
	if err := os.WriteFile(path, []byte("alert_id,timestamp\nA-1,2026-03-02T09:30:00\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	src := NewCSVSource(path)

	_, err := src.Snapshot(context.Background())
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "missing column") {
		t.Errorf("error = %v, want missing column message", err)
	}
}

func TestCSVSource_BadValue(t *testing.T) {
	t.Parallel()

	path := writeCSV(t,
		"ALERT-1,2026-03-02T09:30:00,10.0.0.5,US,10.0.1.9,not-a-port,HTTPS,0,false,chrome.exe,true,false,false,12.5,120,2,false,false,false,TLS1.3,false,",
	)
	src := NewCSVSource(path)

	if _, err := src.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error for unparseable destination_port")
	}
}

func TestJSONSource_Snapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alerts.json")
	content := `[
		{
			"alert_id": "ALERT-1",
			"timestamp": "2026-03-02T09:30:00Z",
			"source_ip": "10.0.0.5",
			"source_country": "US",
			"destination_ip": "10.0.1.9",
			"destination_port": 443,
			"protocol": "HTTPS",
			"failed_login_attempts": 0,
			"data_volume_mb": 12.5,
			"connection_duration_seconds": 120,
			"unique_destinations_count": 2
		}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	src := NewJSONSource(path)

	alerts, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "ALERT-1" || alerts[0].DestinationPort != 443 {
		t.Errorf("alerts = %+v, want single parsed record", alerts)
	}
}
