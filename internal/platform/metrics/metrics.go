package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the Prometheus metrics for the marketplace core.
// All helpers are nil-safe so services can run without metrics in tests.
type Metrics struct {
	HTTPRequestDuration    *prometheus.HistogramVec
	SagaRuns               *prometheus.CounterVec
	SagaStepsSkipped       *prometheus.CounterVec
	SagaCompensations      *prometheus.CounterVec
	CascadeCleanupFailures *prometheus.CounterVec
	OffersAccepted         prometheus.Counter
	SweepDuration          prometheus.Histogram
	SweepRecords           *prometheus.CounterVec
	SweepTicksSkipped      *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in main and a
// fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "neighborly_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: latencyBuckets,
		}, []string{"route", "method", "status"}),
		SagaRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_saga_runs_total",
			Help: "Saga executions by saga and outcome",
		}, []string{"saga", "outcome"}),
		SagaStepsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_saga_steps_skipped_total",
			Help: "Best-effort saga steps that failed and were skipped",
		}, []string{"saga", "step"}),
		SagaCompensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_saga_compensations_total",
			Help: "Saga compensations by saga, step and result",
		}, []string{"saga", "step", "result"}),
		CascadeCleanupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_cascade_cleanup_failures_total",
			Help: "Best-effort cleanup steps that failed during item deletion",
		}, []string{"kind", "step"}),
		OffersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "neighborly_offers_accepted_total",
			Help: "Offers moved from active to accepted",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "neighborly_sweep_duration_seconds",
			Help:    "Duration of one expiration sweep tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		SweepRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_sweep_records_total",
			Help: "Expired records processed by the sweep, by item kind and outcome",
		}, []string{"kind", "outcome"}),
		SweepTicksSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neighborly_sweep_ticks_skipped_total",
			Help: "Sweep ticks that did not run, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ObserveHTTPRequest(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, status).Observe(time.Since(start).Seconds())
}

// IncrementSagaRun records a finished saga. outcome is "succeeded" or "failed".
func (m *Metrics) IncrementSagaRun(saga, outcome string) {
	if m == nil {
		return
	}
	m.SagaRuns.WithLabelValues(saga, outcome).Inc()
}

// StepSkipped, Compensated and CompensationFailed satisfy saga.Observer.
func (m *Metrics) StepSkipped(saga, step string, _ error) {
	if m == nil {
		return
	}
	m.SagaStepsSkipped.WithLabelValues(saga, step).Inc()
}

func (m *Metrics) Compensated(saga, step string) {
	if m == nil {
		return
	}
	m.SagaCompensations.WithLabelValues(saga, step, "ok").Inc()
}

func (m *Metrics) CompensationFailed(saga, step string, _ error) {
	if m == nil {
		return
	}
	m.SagaCompensations.WithLabelValues(saga, step, "failed").Inc()
}

func (m *Metrics) IncrementCascadeCleanupFailure(kind, step string) {
	if m == nil {
		return
	}
	m.CascadeCleanupFailures.WithLabelValues(kind, step).Inc()
}

func (m *Metrics) IncrementOffersAccepted() {
	if m == nil {
		return
	}
	m.OffersAccepted.Inc()
}

// ObserveSweep records the duration of a sweep tick.
// Call with time.Now() at the start of the tick.
func (m *Metrics) ObserveSweep(start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddSweepRecords(kind, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SweepRecords.WithLabelValues(kind, outcome).Add(float64(n))
}

// IncrementSweepSkipped records a tick that did not run. reason is "overlap" or "locked".
func (m *Metrics) IncrementSweepSkipped(reason string) {
	if m == nil {
		return
	}
	m.SweepTicksSkipped.WithLabelValues(reason).Inc()
}
