package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/analysis"
	"github.com/linnemanlabs/verdict/internal/analysis/memstore"
	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/classify"
	"github.com/linnemanlabs/verdict/internal/feature"
	"github.com/linnemanlabs/verdict/internal/ledger"
	"github.com/linnemanlabs/verdict/internal/narrative"
	"github.com/linnemanlabs/verdict/internal/notify"
	"github.com/linnemanlabs/verdict/internal/policy"
)

type fakeSource struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (f *fakeSource) Snapshot(_ context.Context) ([]alert.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]alert.Alert, len(f.alerts))
	copy(out, f.alerts)
	return out, nil
}

func (f *fakeSource) Get(_ context.Context, id string) (*alert.Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			al := f.alerts[i]
			return &al, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeSource) add(alerts ...alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alerts...)
}

// verdictModel derives its label from the destination_port feature, which the
// transform passes through unscaled, so tests can steer the verdict through
// alert data.
type verdictModel struct {
	mu      sync.Mutex
	failFor map[int]bool // fail predictions for this destination port
}

func (m *verdictModel) verdict(v feature.Vector) (string, []float64, error) {
	port, _ := v.Get("destination_port")
	m.mu.Lock()
	fail := m.failFor[int(port)]
	m.mu.Unlock()
	if fail {
		return "", nil, errors.New("scoring service unavailable")
	}
	switch {
	case port >= 4000:
		return "malicious", []float64{0.03, 0.03, 0.94}, nil
	case port >= 1000:
		return "suspicious", []float64{0.2, 0.7, 0.1}, nil
	default:
		return "benign", []float64{0.9, 0.07, 0.03}, nil
	}
}

func (m *verdictModel) Predict(_ context.Context, vectors []feature.Vector) ([]string, error) {
	labels := make([]string, len(vectors))
	for i, v := range vectors {
		label, _, err := m.verdict(v)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

func (m *verdictModel) PredictProba(_ context.Context, vectors []feature.Vector) ([][]float64, error) {
	probas := make([][]float64, len(vectors))
	for i, v := range vectors {
		_, row, err := m.verdict(v)
		if err != nil {
			return nil, err
		}
		probas[i] = row
	}
	return probas, nil
}

type flatAttributor struct{}

func (flatAttributor) Contributions(_ context.Context, v feature.Vector) (*attribution.RawScores, error) {
	scores := make([]float64, v.Schema.Len())
	for i := range scores {
		scores[i] = 0.01
	}
	return &attribution.RawScores{
		PerClass:   [][]float64{scores},
		BaseValues: []float64{0.3},
	}, nil
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []*analysis.Complete
}

func (r *recordingChannel) Name() string { return "slack" }

func (r *recordingChannel) Send(_ context.Context, result *analysis.Complete) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, result)
	return nil
}

func (r *recordingChannel) byAlert() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range r.sent {
		counts[s.AlertID]++
	}
	return counts
}

func testAlert(id string, port int) alert.Alert {
	return alert.Alert{
		ID:              id,
		Timestamp:       time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		SourceCountry:   "US",
		Protocol:        "SSH",
		DestinationPort: port,
		Label:           "benign",
	}
}

type harness struct {
	source  *fakeSource
	model   *verdictModel
	channel *recordingChannel
	ledger  *ledger.Ledger
	store   *memstore.Store
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	source := &fakeSource{}
	model := &verdictModel{failFor: map[int]bool{}}
	channel := &recordingChannel{}

	// fit on a throwaway batch to get a usable transform state
	fitBatch := []alert.Alert{
		testAlert("FIT-1", 0),
		testAlert("FIT-2", 10),
	}
	fitBatch[1].Label = "suspicious"
	extractor := feature.NewExtractor(nil)
	if _, _, err := extractor.Fit(context.Background(), fitBatch); err != nil {
		t.Fatalf("fit: %v", err)
	}

	led, err := ledger.Open(filepath.Join(t.TempDir(), "processed.log"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	store := memstore.New()
	orch := analysis.NewOrchestrator(
		source,
		extractor,
		classify.NewAdapter(model),
		attribution.NewRanker(flatAttributor{}, extractor.State(), 3, nil),
		narrative.NewGenerator(nil, policy.New(0), 0, 0, nil),
		store,
		analysis.Hooks{},
		nil,
	)
	router := notify.NewRouter([]notify.Notifier{channel}, []string{"slack"}, analysis.Hooks{}, nil)
	eng := New(source, orch, led, router, time.Hour, analysis.Hooks{}, nil)

	return &harness{
		source:  source,
		model:   model,
		channel: channel,
		ledger:  led,
		store:   store,
		engine:  eng,
	}
}

func TestTick_ProcessesNewAlertsOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(
		testAlert("ALERT-1", 4444), // malicious
		testAlert("ALERT-2", 1234), // suspicious
		testAlert("ALERT-3", 22),   // benign
	)

	h.engine.tick(context.Background())

	if h.ledger.Len() != 3 {
		t.Errorf("ledger len = %d, want 3", h.ledger.Len())
	}
	counts := h.channel.byAlert()
	if counts["ALERT-1"] != 1 {
		t.Errorf("malicious notifications = %d, want 1", counts["ALERT-1"])
	}
	if counts["ALERT-2"] != 1 {
		t.Errorf("suspicious notifications = %d, want 1 (delivered on flush)", counts["ALERT-2"])
	}
	if counts["ALERT-3"] != 0 {
		t.Errorf("benign notifications = %d, want 0", counts["ALERT-3"])
	}

	// a second tick over the same snapshot is a no-op
	h.engine.tick(context.Background())
	if h.ledger.Len() != 3 {
		t.Errorf("ledger len after second tick = %d, want 3", h.ledger.Len())
	}
	if got := h.channel.byAlert(); got["ALERT-1"] != 1 || got["ALERT-2"] != 1 {
		t.Errorf("notifications after second tick = %v, want unchanged", got)
	}
}

func TestTick_PicksUpAppendedAlerts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(testAlert("ALERT-1", 4444))
	h.engine.tick(context.Background())

	h.source.add(testAlert("ALERT-2", 4445))
	h.engine.tick(context.Background())

	counts := h.channel.byAlert()
	if counts["ALERT-1"] != 1 || counts["ALERT-2"] != 1 {
		t.Errorf("notifications = %v, want exactly one per alert", counts)
	}
}

func TestTick_FailedAlertRetriesNextTick(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(
		testAlert("ALERT-1", 4444),
		testAlert("ALERT-2", 4433),
	)

	// scoring fails for ALERT-2's distinctive destination port
	h.model.mu.Lock()
	h.model.failFor[4433] = true
	h.model.mu.Unlock()

	h.engine.tick(context.Background())

	if !h.ledger.Seen("ALERT-1") {
		t.Error("ALERT-1 should be marked processed")
	}
	if h.ledger.Seen("ALERT-2") {
		t.Error("failed ALERT-2 must stay unmarked for retry")
	}

	// scoring recovers; the next tick picks the alert back up
	h.model.mu.Lock()
	h.model.failFor[4433] = false
	h.model.mu.Unlock()

	h.engine.tick(context.Background())

	if !h.ledger.Seen("ALERT-2") {
		t.Error("ALERT-2 should be processed after retry")
	}
	counts := h.channel.byAlert()
	if counts["ALERT-1"] != 1 || counts["ALERT-2"] != 1 {
		t.Errorf("notifications = %v, want exactly one per alert", counts)
	}
}

func TestTick_SnapshotErrorSkipsCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.mu.Lock()
	h.source.err = fmt.Errorf("feed unreadable")
	h.source.mu.Unlock()

	h.engine.tick(context.Background())

	if h.ledger.Len() != 0 {
		t.Errorf("ledger len = %d, want 0 after failed snapshot", h.ledger.Len())
	}
	if len(h.channel.byAlert()) != 0 {
		t.Error("no notifications expected after failed snapshot")
	}
}

func TestTick_CancellationStopsBetweenAlerts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(
		testAlert("ALERT-1", 4444),
		testAlert("ALERT-2", 4444),
		testAlert("ALERT-3", 4444),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.engine.tick(ctx)

	// cancelled before the first alert: nothing processed, nothing marked
	if h.ledger.Len() != 0 {
		t.Errorf("ledger len = %d, want 0 under cancelled context", h.ledger.Len())
	}
}

// ctxChannel refuses delivery on a cancelled context, the way the real
// webhook and SMTP channels do.
type ctxChannel struct {
	mu     sync.Mutex
	sent   []*analysis.Complete
	failed int
}

func (c *ctxChannel) Name() string { return "slack" }

func (c *ctxChannel) Send(ctx context.Context, result *analysis.Complete) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		c.failed++
		return err
	}
	c.sent = append(c.sent, result)
	return nil
}

// cancellingModel cancels the loop context while scoring, simulating a
// shutdown that lands mid-alert.
type cancellingModel struct {
	verdictModel
	cancel context.CancelFunc
	once   sync.Once
}

func (m *cancellingModel) Predict(ctx context.Context, vectors []feature.Vector) ([]string, error) {
	m.once.Do(m.cancel)
	return m.verdictModel.Predict(ctx, vectors)
}

func TestTick_ShutdownDeliversQueuedNotifications(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	channel := &ctxChannel{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &cancellingModel{cancel: cancel}

	fitBatch := []alert.Alert{
		testAlert("FIT-1", 0),
		testAlert("FIT-2", 10),
	}
	fitBatch[1].Label = "suspicious"
	extractor := feature.NewExtractor(nil)
	if _, _, err := extractor.Fit(context.Background(), fitBatch); err != nil {
		t.Fatalf("fit: %v", err)
	}

	led, err := ledger.Open(filepath.Join(t.TempDir(), "processed.log"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	orch := analysis.NewOrchestrator(
		source,
		extractor,
		classify.NewAdapter(model),
		attribution.NewRanker(flatAttributor{}, extractor.State(), 3, nil),
		narrative.NewGenerator(nil, policy.New(0), 0, 0, nil),
		memstore.New(),
		analysis.Hooks{},
		nil,
	)
	router := notify.NewRouter([]notify.Notifier{channel}, []string{"slack"}, analysis.Hooks{}, nil)
	eng := New(source, orch, led, router, time.Hour, analysis.Hooks{}, nil)

	// suspicious verdict: its notification is queued until the batch flush
	source.add(testAlert("ALERT-1", 1234))

	eng.tick(ctx)

	if !led.Seen("ALERT-1") {
		t.Fatal("ALERT-1 should be marked processed")
	}

	channel.mu.Lock()
	sent, failed := len(channel.sent), channel.failed
	channel.mu.Unlock()

	// a marked alert never re-dispatches, so the queued send must have
	// completed despite the cancelled loop context
	if sent != 1 {
		t.Errorf("deliveries = %d, want 1", sent)
	}
	if failed != 0 {
		t.Errorf("delivery errors = %d, want 0", failed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(testAlert("ALERT-1", 4444))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.engine.Run(ctx)
	}()

	// the first cycle fires immediately; wait for it to land
	deadline := time.After(5 * time.Second)
	for h.ledger.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never processed the alert")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestTick_StoresResults(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add(testAlert("ALERT-1", 4444))
	h.engine.tick(context.Background())

	result, ok, err := h.store.GetByAlertID(context.Background(), "ALERT-1")
	if err != nil || !ok {
		t.Fatalf("GetByAlertID = %v, %v, want stored result", ok, err)
	}
	if result.Verdict != "malicious" {
		t.Errorf("verdict = %q, want malicious", result.Verdict)
	}
	if result.Action != policy.InvestigateImmediately {
		t.Errorf("action = %q, want investigate_immediately", result.Action)
	}
	if result.Explanation == "" {
		t.Error("explanation should never be empty thanks to the fallback template")
	}
}
