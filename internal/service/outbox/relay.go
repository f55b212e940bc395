// Package outbox переносит события жизненного цикла заявок из transactional outbox в брокер.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// Значения метки result.
const (
	resultSent      = "sent"
	resultRetry     = "retry_error"
	resultFailed    = "failed"
	resultDLQ       = "dead_lettered"
	resultDLQFailed = "dlq_failed"
)

type relayMetrics struct {
	attempts      *prometheus.CounterVec
	pending       prometheus.Gauge
	oldestPending prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *relayMetrics
)

func newRelayMetrics(registerer prometheus.Registerer) *relayMetrics {
	m := &relayMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelter_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result",
		}, []string{"result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelter_outbox_pending_records",
			Help: "Lifecycle events waiting in the outbox",
		}),
		oldestPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelter_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox record in seconds",
		}),
	}
	m.attempts = registerOrExisting(registerer, m.attempts).(*prometheus.CounterVec)
	m.pending = registerOrExisting(registerer, m.pending).(prometheus.Gauge)
	m.oldestPending = registerOrExisting(registerer, m.oldestPending).(prometheus.Gauge)
	return m
}

func registerOrExisting(registerer prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

func sharedMetrics() *relayMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newRelayMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Option настраивает Relay.
type Option func(*Relay)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDeadLetter задаёт publisher, в который уходят события после исчерпания попыток.
func WithDeadLetter(publisher domain.OutboxPublisher) Option {
	return func(r *Relay) {
		r.deadLetter = publisher
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) {
		if interval > 0 {
			r.pollInterval = interval
		}
	}
}

// WithBatchSize задаёт число событий, забираемых за один цикл.
func WithBatchSize(size int) Option {
	return func(r *Relay) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(attempts int) Option {
	return func(r *Relay) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт базовую задержку экспоненциального backoff; 0 отключает ожидание.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(r *Relay) {
		if delay < 0 {
			delay = 0
		}
		r.retryBaseDelay = delay
	}
}

// WithRegisterer регистрирует метрики relay в отдельном registry.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(r *Relay) {
		if registerer != nil {
			r.metrics = newRelayMetrics(registerer)
		}
	}
}

// Relay периодически публикует pending-события outbox и помечает их sent или failed.
type Relay struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	deadLetter     domain.OutboxPublisher
	logger         *log.Entry
	metrics        *relayMetrics
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
}

// NewRelay создаёт relay поверх outbox-репозитория и publisher.
func NewRelay(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Relay {
	r := &Relay{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-relay"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = sharedMetrics()
	}
	return r
}

// Run опрашивает outbox до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	if r.repo == nil || r.publisher == nil {
		r.logger.Warn("outbox relay disabled: repository or publisher not configured")
		return
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce публикует одну пачку событий и возвращает число отправленных.
func (r *Relay) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	r.refreshBacklog()
	defer r.refreshBacklog()

	batch, err := r.repo.PullPending(r.batchSize)
	if err != nil {
		r.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	sent := 0
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		entry := r.logger.WithFields(log.Fields{
			"outbox_id":  msg.ID,
			"request_id": msg.AggregateID,
			"event_type": msg.EventType,
		})

		if err := r.publish(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sent
			}
			entry.WithError(err).Error("outbox publish failed after retries")
			r.metrics.attempts.WithLabelValues(resultFailed).Inc()
			r.deadLetterMessage(entry, msg, err)
			if markErr := r.repo.MarkFailed(msg.ID); markErr != nil {
				entry.WithError(markErr).Warn("failed to mark outbox message as failed")
			}
			continue
		}

		sent++
		if err := r.repo.MarkSent(msg.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox message as sent")
		}
	}
	return sent
}

func (r *Relay) publish(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if lastErr = r.publisher.Publish(msg); lastErr == nil {
			r.metrics.attempts.WithLabelValues(resultSent).Inc()
			return nil
		}
		r.metrics.attempts.WithLabelValues(resultRetry).Inc()
		if attempt == r.maxAttempts {
			break
		}

		delay := backoff(r.retryBaseDelay, attempt)
		if delay == 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("publish %s after %d attempts: %w", msg.ID, r.maxAttempts, lastErr)
}

// backoff удваивает base на каждую попытку, не превышая maxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func (r *Relay) refreshBacklog() {
	stats, err := r.repo.Stats()
	if err != nil {
		r.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	r.metrics.pending.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		r.metrics.oldestPending.Set(0)
		return
	}
	r.metrics.oldestPending.Set(max(r.now().Sub(stats.OldestPendingAt).Seconds(), 0))
}

// deadLetterPayload — конверт события, не доставленного в основной топик.
type deadLetterPayload struct {
	OutboxID     string          `json:"outbox_id"`
	RequestID    string          `json:"request_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	PublishError string          `json:"publish_error"`
	FailedAt     time.Time       `json:"failed_at"`
}

func (r *Relay) deadLetterMessage(entry *log.Entry, msg domain.OutboxMessage, publishErr error) {
	if r.deadLetter == nil {
		return
	}

	envelope := deadLetterPayload{
		OutboxID:     msg.ID,
		RequestID:    msg.AggregateID,
		EventType:    msg.EventType,
		PublishError: publishErr.Error(),
		FailedAt:     r.now().UTC(),
	}
	if json.Valid(msg.Payload) {
		envelope.Payload = msg.Payload
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		entry.WithError(err).Warn("failed to encode dead letter envelope")
		r.metrics.attempts.WithLabelValues(resultDLQFailed).Inc()
		return
	}

	dead := msg
	dead.Payload = body
	if err := r.deadLetter.Publish(dead); err != nil {
		entry.WithError(err).Warn("failed to publish to dead letter topic")
		r.metrics.attempts.WithLabelValues(resultDLQFailed).Inc()
		return
	}
	r.metrics.attempts.WithLabelValues(resultDLQ).Inc()
}
