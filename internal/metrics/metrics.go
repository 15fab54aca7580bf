package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Metrics holds all Prometheus metrics for the tutor
type Metrics struct {
	// Review loop
	ReviewsTotal *prometheus.CounterVec
	ChecksTotal  *prometheus.CounterVec

	// Agent metrics
	AgentRequests        *prometheus.CounterVec
	AgentRequestDuration *prometheus.HistogramVec
	GenerationErrors     *prometheus.CounterVec

	// Coaching metrics
	CoachingRuns      *prometheus.CounterVec
	DirectivesEmitted *prometheus.CounterVec
	DirectivesRetired *prometheus.CounterVec

	// Learner state, derived from the stored record so any process can report it
	ActiveDirectives    *prometheus.GaugeVec
	LearnerEvents       *prometheus.GaugeVec
	ReviewClock         *prometheus.GaugeVec
	LearnerReviews      *prometheus.GaugeVec
	LearnerCoachingRuns *prometheus.GaugeVec
	LearnerRetired      *prometheus.GaugeVec

	// Publishing
	EventsPublished *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ReviewsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_reviews_total",
					Help: "Total number of reviewed submissions",
				},
				[]string{"verdict"},
			),
			ChecksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_checks_total",
					Help: "Total number of production checks run",
				},
				[]string{"check", "result"},
			),

			AgentRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_agent_requests_total",
					Help: "Total number of primary agent invocations",
				},
				[]string{"role", "success"},
			),
			AgentRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tutor_agent_request_duration_seconds",
					Help:    "Primary agent invocation duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to 128s
				},
				[]string{"role"},
			),
			GenerationErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_generation_errors_total",
					Help: "Total number of failed or unparseable generations",
				},
				[]string{"role"},
			),

			CoachingRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_coaching_runs_total",
					Help: "Total number of coaching cycles",
				},
				[]string{"trigger"},
			),
			DirectivesEmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_directives_emitted_total",
					Help: "Total number of directives emitted by coaches",
				},
				[]string{"coach", "axis"},
			),
			DirectivesRetired: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_directives_retired_total",
					Help: "Total number of directives retired",
				},
				[]string{"reason"},
			),

			ActiveDirectives: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_active_directives",
					Help: "Active directives per learner and target agent",
				},
				[]string{"learner_id", "target_agent"},
			),
			LearnerEvents: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_learner_events",
					Help: "Task events logged per learner",
				},
				[]string{"learner_id"},
			),
			ReviewClock: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_review_clock",
					Help: "Reviews recorded per learner",
				},
				[]string{"learner_id"},
			),
			LearnerReviews: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_learner_reviews",
					Help: "Reviews in the task log per learner and verdict",
				},
				[]string{"learner_id", "verdict"},
			),
			LearnerCoachingRuns: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_learner_coaching_runs",
					Help: "Coaching cycles committed per learner",
				},
				[]string{"learner_id"},
			),
			LearnerRetired: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tutor_learner_retired_directives",
					Help: "Retired directives kept per learner and reason",
				},
				[]string{"learner_id", "reason"},
			),

			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_events_published_total",
					Help: "Total number of stream messages published",
				},
				[]string{"stream", "success"},
			),
		}
	})
	return sharedMetrics
}

// RecordAgentRequest records one primary agent invocation.
func (m *Metrics) RecordAgentRequest(role tutor.AgentRole, d time.Duration, err error) {
	m.AgentRequests.WithLabelValues(string(role), strconv.FormatBool(err == nil)).Inc()
	m.AgentRequestDuration.WithLabelValues(string(role)).Observe(d.Seconds())
	if err != nil {
		m.GenerationErrors.WithLabelValues(string(role)).Inc()
	}
}

// RecordReview records one reviewed submission.
func (m *Metrics) RecordReview(v tutor.Verdict) {
	m.ReviewsTotal.WithLabelValues(string(v)).Inc()
}

// RecordChecks records production check results.
func (m *Metrics) RecordChecks(results []tutor.CheckResult) {
	for _, r := range results {
		result := "fail"
		if r.Passed {
			result = "pass"
		}
		m.ChecksTotal.WithLabelValues(r.Name, result).Inc()
	}
}

// RecordCoaching records one coaching cycle and what it changed.
func (m *Metrics) RecordCoaching(trigger string, emitted []tutor.Directive, retired []tutor.RetiredDirective) {
	m.CoachingRuns.WithLabelValues(trigger).Inc()
	for _, d := range emitted {
		m.DirectivesEmitted.WithLabelValues(string(d.Coach), string(d.Axis)).Inc()
	}
	for _, r := range retired {
		m.DirectivesRetired.WithLabelValues(string(r.Reason)).Inc()
	}
}

// RecordPublish records one stream publish attempt.
func (m *Metrics) RecordPublish(stream string, err error) {
	m.EventsPublished.WithLabelValues(stream, strconv.FormatBool(err == nil)).Inc()
}

// ObserveLearner sets the per-learner gauges from a committed record.
func (m *Metrics) ObserveLearner(rec *tutor.LearnerRecord) {
	id := rec.Profile.ID
	for _, role := range tutor.PrimaryRoles() {
		m.ActiveDirectives.WithLabelValues(id, string(role)).Set(float64(len(rec.ActiveFor(role))))
	}
	m.LearnerEvents.WithLabelValues(id).Set(float64(len(rec.Events)))
	m.ReviewClock.WithLabelValues(id).Set(float64(rec.ReviewClock))
	m.LearnerCoachingRuns.WithLabelValues(id).Set(float64(rec.CoachingRuns))

	verdicts := map[tutor.Verdict]int{
		tutor.VerdictShipIt:      0,
		tutor.VerdictNeedsWork:   0,
		tutor.VerdictMajorIssues: 0,
	}
	for _, e := range rec.Events {
		if _, ok := verdicts[e.Verdict]; ok {
			verdicts[e.Verdict]++
		}
	}
	for v, n := range verdicts {
		m.LearnerReviews.WithLabelValues(id, string(v)).Set(float64(n))
	}

	reasons := map[tutor.RetireReason]int{
		tutor.RetireSuperseded: 0,
		tutor.RetireExpired:    0,
	}
	for _, r := range rec.Retired {
		reasons[r.Reason]++
	}
	for reason, n := range reasons {
		m.LearnerRetired.WithLabelValues(id, string(reason)).Set(float64(n))
	}
}

// Push sends the default registry to a Prometheus pushgateway under job. One-shot
// commands use it so their counters outlive the process.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).AddContext(ctx)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
