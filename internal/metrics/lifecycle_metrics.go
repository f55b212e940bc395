package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultSuccess        = "success"
	ResultFailed         = "failed"
	ResultAlreadyApplied = "already_applied"
	ResultSkipped        = "skipped"
)

// LifecycleMetrics содержит метрики операций жизненного цикла заявки.
type LifecycleMetrics struct {
	transitions   *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	notifications *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec
	stepDuration      *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewLifecycleMetrics регистрирует метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer регистрирует метрики в переданном registerer (удобно для тестов).
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shelter_request_transitions_total",
			Help: "Adoption request lifecycle operations grouped by operation and result",
		}, []string{"operation", "result"}),
		stepFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shelter_request_step_failures_total",
			Help: "Best-effort lifecycle steps that failed and were tolerated",
		}, []string{"step"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shelter_notifications_total",
			Help: "Notification attempts grouped by kind and result",
		}, []string{"kind", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shelter_request_operation_duration_seconds",
			Help:    "Duration of lifecycle operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shelter_request_step_duration_seconds",
			Help:    "Duration of individual lifecycle steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shelter_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shelter_outbox_events_total",
			Help: "Total number of lifecycle events enqueued to the outbox",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shelter_request_operations_in_flight",
			Help: "Number of lifecycle operations currently running",
		}),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, name string, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return register[prometheus.Counter](registerer, opts.Name, prometheus.NewCounter(opts))
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return register[prometheus.Gauge](registerer, opts.Name, prometheus.NewGauge(opts))
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return register(registerer, opts.Name, prometheus.NewCounterVec(opts, labels))
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return register(registerer, opts.Name, prometheus.NewHistogramVec(opts, labels))
}

// OperationStarted отмечает начало операции.
func (m *LifecycleMetrics) OperationStarted() {
	m.inFlight.Inc()
}

// OperationFinished фиксирует результат и длительность операции.
func (m *LifecycleMetrics) OperationFinished(operation, result string, duration time.Duration) {
	m.inFlight.Dec()
	m.transitions.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага.
func (m *LifecycleMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepFailure учитывает сбой необязательного шага.
func (m *LifecycleMetrics) RecordStepFailure(step string) {
	m.stepFailures.WithLabelValues(step).Inc()
}

// RecordNotification учитывает результат отправки уведомления.
func (m *LifecycleMetrics) RecordNotification(kind, result string) {
	m.notifications.WithLabelValues(kind, result).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LifecycleMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LifecycleMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
