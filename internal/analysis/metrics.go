package analysis

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the analysis pipeline.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	NarrativeSource  *prometheus.CounterVec
	PollTicksTotal   prometheus.Counter
	NewAlertsPerTick prometheus.Histogram
	AlertErrorsTotal prometheus.Counter
	Notifications    *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_analyses_total",
			Help: "Total completed analyses by verdict.",
		}, []string{"verdict"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verdict_analysis_duration_seconds",
			Help:    "Duration of single-alert analyses in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"verdict"}),
		NarrativeSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_narratives_total",
			Help: "Total generated narratives by source path.",
		}, []string{"source"}),
		PollTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_poll_ticks_total",
			Help: "Total real-time engine poll cycles.",
		}),
		NewAlertsPerTick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "verdict_new_alerts_per_tick",
			Help:    "Newly discovered alerts per poll cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		AlertErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_alert_errors_total",
			Help: "Per-alert processing failures in the real-time loop.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_notifications_total",
			Help: "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.NarrativeSource,
		m.PollTicksTotal,
		m.NewAlertsPerTick,
		m.AlertErrorsTotal,
		m.Notifications,
	)

	return m
}

// Hooks returns a Hooks that increments the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnAnalysis: func(r *Complete) {
			m.AnalysesTotal.WithLabelValues(r.Verdict).Inc()
			m.AnalysisDuration.WithLabelValues(r.Verdict).Observe(r.Duration)
			m.NarrativeSource.WithLabelValues(string(r.Source)).Inc()
		},
		OnTick: func(newAlerts int) {
			m.PollTicksTotal.Inc()
			if newAlerts > 0 {
				m.NewAlertsPerTick.Observe(float64(newAlerts))
			}
		},
		OnAlertError: func() {
			m.AlertErrorsTotal.Inc()
		},
		OnNotification: func(channel, outcome string) {
			m.Notifications.WithLabelValues(channel, outcome).Inc()
		},
	}
}
