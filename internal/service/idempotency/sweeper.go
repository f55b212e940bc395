package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepBatchSize = 500
)

type sweeperMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

func newSweeperMetrics(registerer prometheus.Registerer) *sweeperMetrics {
	m := &sweeperMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelter_idempotency_sweep_runs_total",
			Help: "Idempotency key sweeps grouped by result",
		}, []string{"result"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelter_idempotency_sweep_deleted_total",
			Help: "Expired idempotency keys removed",
		}),
		lastDeleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelter_idempotency_sweep_last_deleted",
			Help: "Keys removed during the last sweep",
		}),
	}
	if registerer == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.runs, m.deleted, m.lastDeleted} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*Sweeper)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInterval задаёт паузу между проходами.
func WithInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithBatchSize задаёт число ключей, удаляемых одним запросом.
func WithBatchSize(size int) SweeperOption {
	return func(s *Sweeper) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithRegisterer регистрирует метрики в переданном registry.
func WithRegisterer(registerer prometheus.Registerer) SweeperOption {
	return func(s *Sweeper) {
		s.registerer = registerer
	}
}

// Sweeper периодически удаляет ключи с истёкшим TTL.
type Sweeper struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	registerer prometheus.Registerer
	metrics    *sweeperMetrics
}

// NewSweeper создаёт Sweeper.
func NewSweeper(repo domain.IdempotencyRepository, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:       repo,
		logger:     log.WithField("component", "idempotency-sweeper"),
		interval:   defaultSweepInterval,
		batchSize:  defaultSweepBatchSize,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newSweeperMetrics(s.registerer)
	return s
}

// Run выполняет проходы до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.logger.Warn("idempotency sweeper disabled: repository not configured")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.metrics.runs.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("idempotency sweep failed")
		return
	}

	s.metrics.runs.WithLabelValues("ok").Inc()
	s.metrics.lastDeleted.Set(float64(deleted))
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
}

// DeleteExpired удаляет ключи с TTL не позже before порциями по batchSize.
func (s *Sweeper) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.repo.DeleteExpired(before, s.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		s.metrics.deleted.Add(float64(n))
		if n < s.batchSize {
			return total, nil
		}
	}
}
