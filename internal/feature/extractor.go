package feature

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/alert"
)

// ErrAlreadyFitted is returned when Fit is called on an extractor that
// already holds a State. A State is fitted exactly once.
var ErrAlreadyFitted = errors.New("feature extractor already fitted")

// unseenCountryDefault is the neutral target-encoding substituted for
// countries never seen at fit time.
const unseenCountryDefault = 0.5

// commonPorts are well-known destination ports; anything else raises the
// uncommon_port indicator.
var commonPorts = map[int]bool{80: true, 443: true, 22: true, 3389: true, 445: true}

// labelValues numerically encodes class labels for target/mean encoding.
var labelValues = map[string]float64{
	"benign":     0,
	"suspicious": 1,
	"malicious":  2,
}

// standardColumns are z-score standardized with fit-time mean/std.
var standardColumns = []string{
	"failed_login_attempts", "data_volume_mb",
	"connection_duration_seconds", "unique_destinations_count",
}

// minMaxColumns are scaled to [0,1] with fit-time bounds.
var minMaxColumns = []string{"hour_of_day", "day_of_week"}

// baseColumns is the fixed schema prefix; one-hot protocol columns learned at
// fit time follow it, in sorted vocabulary order.
var baseColumns = []string{
	"destination_port",
	"failed_login_attempts",
	"successful_login_after_failures",
	"process_hash_known",
	"admin_privilege_escalation",
	"off_hours_activity",
	"data_volume_mb",
	"connection_duration_seconds",
	"unique_destinations_count",
	"geo_impossible_travel",
	"user_agent_anomaly",
	"threat_intel_match",
	"lateral_movement_detected",
	"hour_of_day",
	"day_of_week",
	"is_weekend",
	"is_night_shift",
	"login_risk_score",
	"privilege_risk",
	"threat_indicator_count",
	"uncommon_port",
	"source_country_encoded",
}

// Extractor applies the feature pipeline. It is stateless apart from the
// State it holds, which is written once by Fit (or injected via
// NewExtractorFromState) and read-only afterwards.
type Extractor struct {
	state  *State
	logger log.Logger
}

// NewExtractor creates an unfitted extractor. Transform fails with
// ErrNotFitted until Fit has been called.
func NewExtractor(logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{logger: logger}
}

// NewExtractorFromState creates an extractor around a previously fitted State.
func NewExtractorFromState(state *State, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{state: state, logger: logger}
}

// State returns the fitted parameters, or nil before Fit.
func (e *Extractor) State() *State { return e.state }

// Fit learns encodings and scaling statistics from a labelled batch, freezes
// them into the extractor's State, and returns the engineered batch together
// with the passthrough labels.
func (e *Extractor) Fit(ctx context.Context, alerts []alert.Alert) ([]Vector, []string, error) {
	if e.state != nil {
		return nil, nil, ErrAlreadyFitted
	}
	if len(alerts) == 0 {
		return nil, nil, fmt.Errorf("fit requires a non-empty batch")
	}

	labels := make([]string, len(alerts))
	numeric := make([]float64, len(alerts))
	for i := range alerts {
		v, ok := labelValues[alerts[i].Label]
		if !ok {
			return nil, nil, fmt.Errorf("alert %s: unknown label %q", alerts[i].ID, alerts[i].Label)
		}
		labels[i] = alerts[i].Label
		numeric[i] = v
	}

	rows := make([]rawRow, len(alerts))
	for i := range alerts {
		rows[i] = deriveRaw(&alerts[i])
	}

	// target/mean encoding for source country
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, r := range rows {
		sums[r.country] += numeric[i]
		counts[r.country]++
	}
	countryEnc := make(map[string]float64, len(sums))
	for c, sum := range sums {
		countryEnc[c] = sum / float64(counts[c])
	}

	// one-hot vocabulary for protocol, sorted for a deterministic schema
	seen := make(map[string]bool)
	for _, r := range rows {
		seen[r.protocol] = true
	}
	vocab := make([]string, 0, len(seen))
	for p := range seen {
		vocab = append(vocab, p)
	}
	sort.Strings(vocab)

	standard := make(map[string]MeanStd, len(standardColumns))
	for _, col := range standardColumns {
		standard[col] = fitMeanStd(rows, col)
	}
	minmax := make(map[string]Bounds, len(minMaxColumns))
	for _, col := range minMaxColumns {
		minmax[col] = fitBounds(rows, col)
	}

	columns := make([]string, 0, len(baseColumns)+len(vocab))
	columns = append(columns, baseColumns...)
	for _, p := range vocab {
		columns = append(columns, "protocol_"+p)
	}

	names := make(map[string]string, len(columns))
	for _, col := range columns {
		if hn, ok := humanNames[col]; ok {
			names[col] = hn
		} else {
			names[col] = TitleCase(col)
		}
	}

	e.state = &State{
		Schema:      NewSchema(columns),
		Standard:    standard,
		MinMax:      minmax,
		CountryEnc:  countryEnc,
		ProtocolVoc: vocab,
		HumanNames:  names,
	}

	vectors := make([]Vector, len(rows))
	for i := range rows {
		vectors[i] = e.state.apply(rows[i])
	}

	e.logger.Info(ctx, "feature extractor fitted",
		"rows", len(alerts),
		"features", e.state.Schema.Len(),
		"countries", len(countryEnc),
		"protocols", len(vocab),
	)

	return vectors, labels, nil
}

// Transform applies the fitted parameters to a batch. Unseen categories
// degrade gracefully (neutral target encoding, all-zero one-hot row); the
// output always has exactly the fit-time schema, in fit-time order.
func (e *Extractor) Transform(ctx context.Context, alerts []alert.Alert) ([]Vector, error) {
	if e.state == nil {
		return nil, ErrNotFitted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([]Vector, len(alerts))
	for i := range alerts {
		vectors[i] = e.state.apply(deriveRaw(&alerts[i]))
	}
	return vectors, nil
}

// TransformOne applies the fitted parameters to a single alert.
func (e *Extractor) TransformOne(ctx context.Context, al *alert.Alert) (Vector, error) {
	vs, err := e.Transform(ctx, []alert.Alert{*al})
	if err != nil {
		return Vector{}, err
	}
	return vs[0], nil
}

// rawRow is the pre-encoding numeric view of one alert plus the categorical
// values that still need encoding.
type rawRow struct {
	values   map[string]float64
	country  string
	protocol string
}

func deriveRaw(al *alert.Alert) rawRow {
	hour := float64(al.Timestamp.Hour())
	// Monday=0 .. Sunday=6
	dow := float64((int(al.Timestamp.Weekday()) + 6) % 7)

	isWeekend := b2f(dow >= 5)
	isNight := b2f(hour >= 0 && hour < 6)

	loginRisk := float64(al.FailedLoginAttempts) * b2f(al.SuccessfulAfterFails)
	privRisk := b2f(al.AdminEscalation) * b2f(al.OffHoursActivity)
	threatCount := b2f(al.ThreatIntelMatch) + b2f(al.GeoImpossibleTravel) +
		b2f(al.UserAgentAnomaly) + b2f(al.LateralMovement)
	uncommon := b2f(!commonPorts[al.DestinationPort])

	return rawRow{
		country:  al.SourceCountry,
		protocol: al.Protocol,
		values: map[string]float64{
			"destination_port":                float64(al.DestinationPort),
			"failed_login_attempts":           float64(al.FailedLoginAttempts),
			"successful_login_after_failures": b2f(al.SuccessfulAfterFails),
			"process_hash_known":              b2f(al.ProcessHashKnown),
			"admin_privilege_escalation":      b2f(al.AdminEscalation),
			"off_hours_activity":              b2f(al.OffHoursActivity),
			"data_volume_mb":                  al.DataVolumeMB,
			"connection_duration_seconds":     al.ConnectionDurationSec,
			"unique_destinations_count":       float64(al.UniqueDestinations),
			"geo_impossible_travel":           b2f(al.GeoImpossibleTravel),
			"user_agent_anomaly":              b2f(al.UserAgentAnomaly),
			"threat_intel_match":              b2f(al.ThreatIntelMatch),
			"lateral_movement_detected":       b2f(al.LateralMovement),
			"hour_of_day":                     hour,
			"day_of_week":                     dow,
			"is_weekend":                      isWeekend,
			"is_night_shift":                  isNight,
			"login_risk_score":                loginRisk,
			"privilege_risk":                  privRisk,
			"threat_indicator_count":          threatCount,
			"uncommon_port":                   uncommon,
		},
	}
}

// apply turns one raw row into a schema-ordered vector using fitted
// parameters only. Any schema column the row cannot produce is zero-filled.
func (s *State) apply(r rawRow) Vector {
	values := make([]float64, s.Schema.Len())
	for i, col := range s.Schema.Columns {
		switch {
		case col == "source_country_encoded":
			if enc, ok := s.CountryEnc[r.country]; ok {
				values[i] = enc
			} else {
				values[i] = unseenCountryDefault
			}
		case strings.HasPrefix(col, "protocol_"):
			if r.protocol == strings.TrimPrefix(col, "protocol_") {
				values[i] = 1
			}
		default:
			v := r.values[col]
			if ms, ok := s.Standard[col]; ok {
				v = (v - ms.Mean) / ms.Std
			} else if b, ok := s.MinMax[col]; ok {
				v = (v - b.Min) / (b.Max - b.Min)
			}
			values[i] = v
		}
	}
	return Vector{Schema: s.Schema, Values: values}
}

func fitMeanStd(rows []rawRow, col string) MeanStd {
	var sum float64
	for _, r := range rows {
		sum += r.values[col]
	}
	mean := sum / float64(len(rows))

	var sq float64
	for _, r := range rows {
		d := r.values[col] - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(rows)))
	if std == 0 {
		// constant column: pass through centered, never divide by zero
		std = 1
	}
	return MeanStd{Mean: mean, Std: std}
}

func fitBounds(rows []rawRow, col string) Bounds {
	min := rows[0].values[col]
	max := min
	for _, r := range rows[1:] {
		v := r.values[col]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		// degenerate range: map the constant to 0
		max = min + 1
	}
	return Bounds{Min: min, Max: max}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
