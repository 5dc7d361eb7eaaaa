package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations   *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastScore     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellerguard_risk_evaluations_total",
				Help: "Risk evaluations by resulting level",
			},
			[]string{"level"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellerguard_alerts_raised_total",
				Help: "Alerts raised by type and severity",
			},
			[]string{"type", "severity"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellerguard_notifications_total",
				Help: "Alert notifications routed per channel",
			},
			[]string{"channel"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellerguard_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sellerguard_last_risk_score",
				Help: "Most recent risk score per account",
			},
			[]string{"account"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sellerguard_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation counts one evaluation that ended at level.
func (r *Recorder) RecordEvaluation(level string) {
	r.evaluations.WithLabelValues(level).Inc()
}

// RecordAlert counts one raised alert.
func (r *Recorder) RecordAlert(alertType, severity string) {
	r.alerts.WithLabelValues(alertType, severity).Inc()
}

// RecordNotification counts one notification routed to channel.
func (r *Recorder) RecordNotification(channel string) {
	r.notifications.WithLabelValues(channel).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastScore sets the latest score of an account.
func (r *Recorder) RecordLastScore(accountID string, score float64) {
	r.lastScore.WithLabelValues(accountID).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
