package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Matching metrics
	matchRunsTotal prometheus.Counter
	matchRowsTotal *prometheus.CounterVec

	// Dispatch metrics
	dispatchRunsTotal     prometheus.Counter
	runDuration           prometheus.Histogram
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryDuration      prometheus.Histogram
	retryAttemptsTotal    prometheus.Counter
	deliveryOutcomesTotal *prometheus.CounterVec
	recipientsInRun       prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left as functional
// unregistered collectors.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initMatchMetrics(reg)
	s.initDispatchMetrics(reg)
	return s
}

func (s *PrometheusSink) initMatchMetrics(reg prometheus.Registerer) {
	s.matchRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailer_match_runs_total",
		Help: "Total number of roster matching passes.",
	})
	s.matchRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_match_rows_total",
		Help: "Roster rows seen by the matcher, by classification.",
	}, []string{"class"})

	s.register(reg, s.matchRunsTotal, "mailer_match_runs_total")
	s.register(reg, s.matchRowsTotal, "mailer_match_rows_total")
}

func (s *PrometheusSink) initDispatchMetrics(reg prometheus.Registerer) {
	s.dispatchRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailer_dispatch_runs_total",
		Help: "Total number of dispatch runs started.",
	})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailer_dispatch_run_duration_seconds",
		Help:    "Wall-clock duration of complete dispatch runs.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
	s.deliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_dispatch_delivery_attempts_total",
		Help: "Total number of delivery attempts.",
	}, []string{"attempt", "status_class"})
	s.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailer_dispatch_delivery_duration_seconds",
		Help:    "Mail transport latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.retryAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailer_dispatch_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	})
	s.deliveryOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_dispatch_delivery_outcomes_total",
		Help: "Final per-recipient outcomes.",
	}, []string{"outcome"})
	s.recipientsInRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mailer_dispatch_run_recipients",
		Help: "Number of recipients in the most recent dispatch run.",
	})

	s.register(reg, s.dispatchRunsTotal, "mailer_dispatch_runs_total")
	s.register(reg, s.runDuration, "mailer_dispatch_run_duration_seconds")
	s.register(reg, s.deliveryAttemptsTotal, "mailer_dispatch_delivery_attempts_total")
	s.register(reg, s.deliveryDuration, "mailer_dispatch_delivery_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "mailer_dispatch_retry_attempts_total")
	s.register(reg, s.deliveryOutcomesTotal, "mailer_dispatch_delivery_outcomes_total")
	s.register(reg, s.recipientsInRun, "mailer_dispatch_run_recipients")
}

// register attempts to register a collector, logging any errors without
// propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) MatchRunCompleted(matches, skipped, totalRows int) {
	s.matchRunsTotal.Inc()
	s.matchRowsTotal.WithLabelValues("matched").Add(float64(matches))
	s.matchRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	other := totalRows - matches - skipped
	if other > 0 {
		s.matchRowsTotal.WithLabelValues("other").Add(float64(other))
	}
}

func (s *PrometheusSink) DispatchRunStarted(total int) {
	s.dispatchRunsTotal.Inc()
	s.recipientsInRun.Set(float64(total))
}

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.deliveryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.deliveryDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RetryAttempt() {
	s.retryAttemptsTotal.Inc()
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) DispatchRunCompleted(duration time.Duration) {
	s.runDuration.Observe(duration.Seconds())
}
