package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shelter/internal/health"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/shelter/internal/storage/memory"
	"github.com/vladislavdragonenkov/shelter/internal/storage/postgres"
)

// runtimeDependencies — хранилища выбранного драйвера и функции их закрытия.
type runtimeDependencies struct {
	requests        domain.RequestRepository
	pets            domain.PetRepository
	appointments    domain.AppointmentRepository
	requesters      domain.RequesterRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func (d *runtimeDependencies) lifecycleDependencies(notifier domain.NotificationGateway) lifecycle.Dependencies {
	return lifecycle.Dependencies{
		Requests:     d.requests,
		Pets:         d.pets,
		Appointments: d.appointments,
		Requesters:   d.requesters,
		Notifier:     notifier,
		Outbox:       d.outboxRepo,
		Timeline:     d.timelineRepo,
	}
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			requests:        memory.NewRequestRepository(),
			pets:            memory.NewPetRepository(),
			appointments:    memory.NewAppointmentRepository(),
			requesters:      memory.NewRequesterRepository(),
			outboxRepo:      memory.NewOutboxRepository(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}, nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage requires SHELTER_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	logger.Info("using postgres storage")
	return &runtimeDependencies{
		requests:        postgres.NewRequestRepository(store),
		pets:            postgres.NewPetRepository(store),
		appointments:    postgres.NewAppointmentRepository(store),
		requesters:      postgres.NewRequesterRepository(store),
		outboxRepo:      postgres.NewOutboxRepository(store),
		timelineRepo:    postgres.NewTimelineRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		storageChecker:  healthcheck.NewPingChecker("postgres", store.Ping),
		closeFn:         store.Close,
	}, nil
}

// initLocker выбирает блокировку заявок. Для redis возвращает checker и функцию закрытия клиента.
func initLocker(ctx context.Context, cfg Config, logger *log.Entry) (lifecycle.Locker, healthcheck.Checker, func() error, error) {
	switch cfg.LockBackend {
	case "", LockBackendMemory:
		return lifecycle.NewKeyedMutex(), nil, nil, nil
	case LockBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis request lock")
		locker := lifecycle.NewRedisLocker(client, "", cfg.RedisLockTTL, 0, logger.WithField("component", "redis-locker"))
		checker := healthcheck.NewPingChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return locker, checker, client.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported lock backend %q", cfg.LockBackend)
	}
}

// initNotifier создаёт шлюз уведомлений с повторами, circuit breaker и ограничением частоты.
func initNotifier(cfg Config, logger *log.Entry) (domain.NotificationGateway, error) {
	var base domain.NotificationGateway
	switch cfg.Notifier {
	case "", NotifierMemory:
		base = notification.NewMemoryGateway(logger.WithField("component", "notification-memory"))
	case NotifierSMTP:
		smtp, err := notification.NewSMTPGateway(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			StartTLS: cfg.SMTPStartTLS,
			Timeout:  cfg.NotifyTimeout,
		}, logger.WithField("component", "notification-smtp"))
		if err != nil {
			return nil, fmt.Errorf("init smtp gateway: %w", err)
		}
		base = smtp
	default:
		return nil, fmt.Errorf("unsupported notifier %q", cfg.Notifier)
	}

	retry := notification.DefaultRetryConfig()
	if cfg.NotifyRetryAttempts > 0 {
		retry.MaxAttempts = cfg.NotifyRetryAttempts
	}
	if cfg.NotifyRetryDelay > 0 {
		retry.InitialDelay = cfg.NotifyRetryDelay
	}

	resilientLogger := logger.WithField("component", "notification-resilient")
	opts := []notification.ResilientOption{
		notification.WithRetry(retry),
		notification.WithRateLimit(cfg.NotifyRateLimit, cfg.NotifyRateBurst),
		notification.WithResilientLogger(resilientLogger),
	}
	if cfg.NotifyBreakerFailures > 0 {
		opts = append(opts, notification.WithCircuitBreaker(
			notification.NewCircuitBreaker(cfg.NotifyBreakerFailures, cfg.NotifyBreakerReset, resilientLogger),
		))
	}
	return notification.NewResilientGateway(base, opts...), nil
}
