package feature

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/linnemanlabs/verdict/internal/alert"
)

func trainingBatch() []alert.Alert {
	// 2026-03-02 is a Monday
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []alert.Alert{
		{
			ID: "A-1", Timestamp: monday, SourceCountry: "US", Protocol: "HTTPS",
			DestinationPort: 443, FailedLoginAttempts: 0, DataVolumeMB: 10,
			ConnectionDurationSec: 120, UniqueDestinations: 2, Label: "benign",
		},
		{
			ID: "A-2", Timestamp: monday.Add(4 * time.Hour), SourceCountry: "US", Protocol: "SSH",
			DestinationPort: 22, FailedLoginAttempts: 5, DataVolumeMB: 50,
			ConnectionDurationSec: 300, UniqueDestinations: 4, Label: "suspicious",
		},
		{
			ID: "A-3", Timestamp: monday.Add(17 * time.Hour), SourceCountry: "KP", Protocol: "RDP",
			DestinationPort: 3389, FailedLoginAttempts: 40, SuccessfulAfterFails: true,
			AdminEscalation: true, OffHoursActivity: true, ThreatIntelMatch: true,
			DataVolumeMB: 900, ConnectionDurationSec: 3600, UniqueDestinations: 25,
			Label: "malicious",
		},
		{
			ID: "A-4", Timestamp: monday.Add(26 * time.Hour), SourceCountry: "KP", Protocol: "SSH",
			DestinationPort: 8443, FailedLoginAttempts: 12, DataVolumeMB: 200,
			ConnectionDurationSec: 600, UniqueDestinations: 9, Label: "suspicious",
		},
	}
}

func fitted(t *testing.T) (*Extractor, []Vector) {
	t.Helper()
	e := NewExtractor(nil)
	vecs, _, err := e.Fit(context.Background(), trainingBatch())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return e, vecs
}

func TestFit_SchemaIsDeterministic(t *testing.T) {
	t.Parallel()

	e, vecs := fitted(t)
	state := e.State()

	// fixed prefix plus sorted one-hot protocol columns
	wantProtocols := []string{"HTTPS", "RDP", "SSH"}
	if len(state.ProtocolVoc) != len(wantProtocols) {
		t.Fatalf("protocol vocab = %v, want %v", state.ProtocolVoc, wantProtocols)
	}
	for i, p := range wantProtocols {
		if state.ProtocolVoc[i] != p {
			t.Errorf("protocol vocab[%d] = %q, want %q", i, state.ProtocolVoc[i], p)
		}
	}

	wantLen := len(baseColumns) + len(wantProtocols)
	if state.Schema.Len() != wantLen {
		t.Fatalf("schema len = %d, want %d", state.Schema.Len(), wantLen)
	}
	for _, v := range vecs {
		if len(v.Values) != wantLen {
			t.Fatalf("vector len = %d, want %d", len(v.Values), wantLen)
		}
	}
	if got := state.Schema.Columns[wantLen-1]; got != "protocol_SSH" {
		t.Errorf("last column = %q, want protocol_SSH", got)
	}
}

func TestFit_OnlyOnce(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)
	if _, _, err := e.Fit(context.Background(), trainingBatch()); !errors.Is(err, ErrAlreadyFitted) {
		t.Fatalf("second Fit error = %v, want ErrAlreadyFitted", err)
	}
}

func TestFit_EmptyBatch(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	if _, _, err := e.Fit(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestFit_UnknownLabel(t *testing.T) {
	t.Parallel()

	batch := trainingBatch()
	batch[1].Label = "weird"
	e := NewExtractor(nil)
	if _, _, err := e.Fit(context.Background(), batch); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestFit_CountryTargetEncoding(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)
	state := e.State()

	// US rows are benign(0) and suspicious(1); KP rows malicious(2) and suspicious(1)
	if got, want := state.CountryEnc["US"], 0.5; got != want {
		t.Errorf("US encoding = %g, want %g", got, want)
	}
	if got, want := state.CountryEnc["KP"], 1.5; got != want {
		t.Errorf("KP encoding = %g, want %g", got, want)
	}
}

func TestTransform_NotFitted(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	if _, err := e.Transform(context.Background(), trainingBatch()); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("Transform error = %v, want ErrNotFitted", err)
	}
}

func TestTransform_UnseenCategories(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)
	state := e.State()

	al := trainingBatch()[0]
	al.SourceCountry = "ZZ"
	al.Protocol = "GOPHER"

	v, err := e.TransformOne(context.Background(), &al)
	if err != nil {
		t.Fatalf("TransformOne: %v", err)
	}

	got, ok := v.Get("source_country_encoded")
	if !ok {
		t.Fatal("source_country_encoded missing from schema")
	}
	if got != unseenCountryDefault {
		t.Errorf("unseen country encoding = %g, want %g", got, unseenCountryDefault)
	}

	// unseen protocol leaves the whole one-hot row at zero
	for _, p := range state.ProtocolVoc {
		hot, _ := v.Get("protocol_" + p)
		if hot != 0 {
			t.Errorf("protocol_%s = %g, want 0 for unseen protocol", p, hot)
		}
	}
}

func TestTransform_DerivedFeatures(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)

	// 2026-03-08 is a Sunday; 02:00 is night shift
	al := alert.Alert{
		ID:                   "A-9",
		Timestamp:            time.Date(2026, 3, 8, 2, 0, 0, 0, time.UTC),
		SourceCountry:        "US",
		Protocol:             "SSH",
		DestinationPort:      4444,
		FailedLoginAttempts:  47,
		SuccessfulAfterFails: true,
		AdminEscalation:      true,
		OffHoursActivity:     true,
		ThreatIntelMatch:     true,
		GeoImpossibleTravel:  true,
	}
	v, err := e.TransformOne(context.Background(), &al)
	if err != nil {
		t.Fatalf("TransformOne: %v", err)
	}

	checks := map[string]float64{
		"is_weekend":             1, // Sunday maps to day 6
		"is_night_shift":         1,
		"login_risk_score":       47,
		"privilege_risk":         1,
		"threat_indicator_count": 2,
		"uncommon_port":          1,
	}
	for col, want := range checks {
		got, ok := v.Get(col)
		if !ok {
			t.Fatalf("column %s missing from schema", col)
		}
		if got != want {
			t.Errorf("%s = %g, want %g", col, got, want)
		}
	}
}

func TestTransform_Standardization(t *testing.T) {
	t.Parallel()

	e, vecs := fitted(t)
	state := e.State()

	// z-scores of a fitted column average to zero over the training batch
	idx, ok := state.Schema.Index("failed_login_attempts")
	if !ok {
		t.Fatal("failed_login_attempts missing from schema")
	}
	var sum float64
	for _, v := range vecs {
		sum += v.Values[idx]
	}
	if mean := sum / float64(len(vecs)); math.Abs(mean) > 1e-9 {
		t.Errorf("mean z-score = %g, want 0", mean)
	}

	// min-max columns stay inside [0,1] on training data
	hourIdx, _ := state.Schema.Index("hour_of_day")
	for _, v := range vecs {
		if v.Values[hourIdx] < 0 || v.Values[hourIdx] > 1 {
			t.Errorf("hour_of_day = %g, want within [0,1]", v.Values[hourIdx])
		}
	}
}

func TestFit_ConstantColumnDoesNotDivideByZero(t *testing.T) {
	t.Parallel()

	batch := trainingBatch()
	for i := range batch {
		batch[i].FailedLoginAttempts = 7
	}
	e := NewExtractor(nil)
	vecs, _, err := e.Fit(context.Background(), batch)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	idx, _ := e.State().Schema.Index("failed_login_attempts")
	for _, v := range vecs {
		if math.IsNaN(v.Values[idx]) || math.IsInf(v.Values[idx], 0) {
			t.Fatalf("constant column produced %g", v.Values[idx])
		}
	}
}

func TestState_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)
	path := filepath.Join(t.TempDir(), "state.json")
	if err := e.State().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	e2 := NewExtractorFromState(loaded, nil)
	al := trainingBatch()[2]
	v1, err := e.TransformOne(context.Background(), &al)
	if err != nil {
		t.Fatalf("TransformOne original: %v", err)
	}
	v2, err := e2.TransformOne(context.Background(), &al)
	if err != nil {
		t.Fatalf("TransformOne loaded: %v", err)
	}

	if len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector lengths differ: %d vs %d", len(v1.Values), len(v2.Values))
	}
	for i := range v1.Values {
		if v1.Values[i] != v2.Values[i] {
			t.Errorf("values[%d] = %g after reload, want %g (%s)",
				i, v2.Values[i], v1.Values[i], loaded.Schema.Columns[i])
		}
	}
}

func TestHumanName_FallsBackToTitleCase(t *testing.T) {
	t.Parallel()

	e, _ := fitted(t)
	state := e.State()

	if got := state.HumanName("failed_login_attempts"); got != "Failed Login Attempts" {
		t.Errorf("mapped name = %q, want Failed Login Attempts", got)
	}
	if got := state.HumanName("protocol_SSH"); got == "" {
		t.Error("unmapped column should still produce a readable name")
	}
}
