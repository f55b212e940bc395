package lifecycle

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/metrics"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
	"github.com/vladislavdragonenkov/shelter/internal/policy"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	tracerName           = "github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
)

// Manager описывает операции жизненного цикла заявки на усыновление.
// Ошибка возвращается только для основного шага; сбои остальных шагов попадают в Outcome.
type Manager interface {
	Submit(ctx context.Context, req domain.AdoptionRequest, appointmentID string) (Outcome, error)
	Accept(ctx context.Context, requestID, actorID string) (Outcome, error)
	Reject(ctx context.Context, requestID, actorID string) (Outcome, error)
	RequestModification(ctx context.Context, requestID, actorID, note string) (Outcome, error)
	Cancel(ctx context.Context, requestID, actorID string) (Outcome, error)
	CancelAppointment(ctx context.Context, requestID, actorID string) (Outcome, error)
	// Wait дожидается асинхронных отправок уведомлений.
	Wait()
}

// EventPublisher публикует события напрямую в брокер (например, *kafka.Producer).
type EventPublisher interface {
	PublishEvent(topic string, key string, event any) error
}

// Dependencies — хранилища и шлюзы, с которыми работает менеджер.
type Dependencies struct {
	Requests     domain.RequestRepository
	Pets         domain.PetRepository
	Appointments domain.AppointmentRepository
	Requesters   domain.RequesterRepository
	Notifier     domain.NotificationGateway
	// Outbox и Timeline необязательны.
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
}

// Option настраивает менеджер.
type Option func(*manager)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(m *manager) { m.logger = logger }
}

// WithMetrics включает Prometheus-метрики.
func WithMetrics(mx *metrics.LifecycleMetrics) Option {
	return func(m *manager) { m.metrics = mx }
}

// WithPolicy заменяет политику переходов.
func WithPolicy(p *policy.RequestPolicy) Option {
	return func(m *manager) { m.policy = p }
}

// WithLocker заменяет блокировку заявок (по умолчанию in-process KeyedMutex).
func WithLocker(l Locker) Option {
	return func(m *manager) { m.locker = l }
}

// WithNotifyTimeout ограничивает время отправки одного уведомления.
func WithNotifyTimeout(d time.Duration) Option {
	return func(m *manager) { m.notifyTimeout = d }
}

// WithAsyncNotifications отправляет уведомления в фоне; результат только логируется.
func WithAsyncNotifications(enabled bool) Option {
	return func(m *manager) { m.asyncNotify = enabled }
}

// WithReleaseAppointmentOnCancel заставляет Cancel освобождать слот так же, как CancelAppointment.
func WithReleaseAppointmentOnCancel(enabled bool) Option {
	return func(m *manager) { m.releaseOnCancel = enabled }
}

// WithEventPublisher дублирует события жизненного цикла напрямую в Kafka topic.
func WithEventPublisher(p EventPublisher, topic string) Option {
	return func(m *manager) {
		m.events = p
		m.eventsTopic = topic
	}
}

// WithTemplates заменяет шаблоны уведомлений.
func WithTemplates(t *notification.Templates) Option {
	return func(m *manager) { m.templates = t }
}

// WithTracer задаёт OpenTelemetry tracer (по умолчанию глобальный провайдер).
func WithTracer(t trace.Tracer) Option {
	return func(m *manager) { m.tracer = t }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *manager) { m.now = now }
}

// manager реализует последовательности шагов для каждой операции над заявкой.
type manager struct {
	requests     domain.RequestRepository
	pets         domain.PetRepository
	appointments domain.AppointmentRepository
	requesters   domain.RequesterRepository
	notifier     domain.NotificationGateway
	outbox       domain.OutboxRepository
	timeline     domain.TimelineRepository

	policy        *policy.RequestPolicy
	locker        Locker
	templates     *notification.Templates
	logger        *log.Entry
	metrics       *metrics.LifecycleMetrics
	tracer        trace.Tracer
	events        EventPublisher
	eventsTopic   string
	now           func() time.Time
	notifyTimeout time.Duration

	asyncNotify     bool
	releaseOnCancel bool
	notifyWG        sync.WaitGroup
}

// NewManager создаёт менеджер жизненного цикла. Метрики подключаются через WithMetrics.
func NewManager(deps Dependencies, opts ...Option) Manager {
	m := &manager{
		requests:      deps.Requests,
		pets:          deps.Pets,
		appointments:  deps.Appointments,
		requesters:    deps.Requesters,
		notifier:      deps.Notifier,
		outbox:        deps.Outbox,
		timeline:      deps.Timeline,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = log.New().WithField("component", "lifecycle")
	}
	if m.policy == nil {
		m.policy = policy.New()
	}
	if m.locker == nil {
		m.locker = NewKeyedMutex()
	}
	if m.templates == nil {
		m.templates = notification.MustTemplates()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.notifyTimeout <= 0 {
		m.notifyTimeout = defaultNotifyTimeout
	}
	return m
}

func (m *manager) Wait() {
	m.notifyWG.Wait()
}

var _ Manager = (*manager)(nil)
