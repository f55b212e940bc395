package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shelter/internal/health"
	"github.com/vladislavdragonenkov/shelter/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shelter/internal/metrics"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
	"github.com/vladislavdragonenkov/shelter/internal/platform/observability"
	grpcsvc "github.com/vladislavdragonenkov/shelter/internal/service/grpc"
	"github.com/vladislavdragonenkov/shelter/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/shelter/internal/service/outbox"
	"github.com/vladislavdragonenkov/shelter/internal/service/query"
	"github.com/vladislavdragonenkov/shelter/internal/version"
)

const (
	serviceName     = "shelter-service"
	shutdownTimeout = 5 * time.Second
)

// Run собирает зависимости, запускает gRPC и HTTP-серверы и фоновые воркеры до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Exporter:    cfg.OTelExporter,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
	}, logger.WithField("component", "observability"))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	locker, lockChecker, closeLocker, err := initLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeLocker != nil {
		defer func() { _ = closeLocker() }()
	}

	notifier, err := initNotifier(cfg, logger)
	if err != nil {
		return err
	}

	templates, err := initTemplates(cfg.NotifyTimezone)
	if err != nil {
		return err
	}

	kafkaProducer, _ := initKafkaProducer(cfg, logger)
	defer closeKafka(kafkaProducer, logger)

	manager := lifecycle.NewManager(deps.lifecycleDependencies(notifier),
		managerOptions(cfg, kafkaProducer, locker, templates, logger.WithField("component", "lifecycle"))...)
	queries := query.NewService(query.Dependencies{
		Requests:     deps.requests,
		Pets:         deps.pets,
		Appointments: deps.appointments,
		Requesters:   deps.requesters,
		Timeline:     deps.timelineRepo,
	}, logger.WithField("component", "query"))

	adoptionService := grpcsvc.NewAdoptionService(manager, queries, deps.idempotencyRepo, logger.WithField("layer", "grpc"))

	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	grpcsvc.RegisterAdoptionServiceServer(grpcServer, adoptionService)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("postgres", deps.storageChecker)
	}
	if lockChecker != nil {
		healthHandler.RegisterChecker("redis", lockChecker)
	}
	healthHandler.RegisterChecker("outbox", outboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxPending))

	workersCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workersCtx, cfg, deps, kafkaProducer, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownWorkers(stopWorkers, workersDone, logger)
		return err
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC server listening on %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gRPC server")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	shutdownHTTP(metricsSrv, logger)
	shutdownAdoptionService(adoptionService, logger)
	shutdownWorkers(stopWorkers, workersDone, logger)
	return runErr
}

func managerOptions(cfg Config, producer *kafka.Producer, locker lifecycle.Locker, templates *notification.Templates, logger *log.Entry) []lifecycle.Option {
	opts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(metrics.NewLifecycleMetrics()),
		lifecycle.WithLocker(locker),
		lifecycle.WithTemplates(templates),
		lifecycle.WithNotifyTimeout(cfg.NotifyTimeout),
		lifecycle.WithAsyncNotifications(cfg.NotifyMode == NotifyModeAsync),
		lifecycle.WithReleaseAppointmentOnCancel(cfg.ReleaseAppointmentOnCancel),
	}
	if producer != nil {
		opts = append(opts, lifecycle.WithEventPublisher(producer, kafka.TopicAdoptionEvents))
	}
	return opts
}

func initTemplates(timezone string) (*notification.Templates, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("load notification timezone %q: %w", timezone, err)
		}
	}
	return notification.NewTemplates(loc)
}

func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// startWorkers запускает outbox relay (при наличии Kafka) и очистку idempotency-ключей.
func startWorkers(ctx context.Context, cfg Config, deps *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) <-chan struct{} {
	var wg sync.WaitGroup

	if producer != nil && deps.outboxRepo != nil {
		relay := outbox.NewRelay(deps.outboxRepo, kafka.NewOutboxPublisher(producer, kafka.TopicAdoptionEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-relay")),
			outbox.WithDeadLetter(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	} else {
		logger.Info("kafka is not configured, outbox relay is not started")
	}

	if deps.idempotencyRepo != nil {
		sweeper := idempotency.NewSweeper(deps.idempotencyRepo,
			idempotency.WithLogger(logger.WithField("component", "idempotency-sweeper")),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// outboxBacklogChecker понижает статус до degraded, когда backlog outbox превышает maxPending.
func outboxBacklogChecker(repo domain.OutboxRepository, maxPending int) healthcheck.Checker {
	return healthcheck.NewOptionalChecker("outbox", func(context.Context) error {
		if repo == nil {
			return nil
		}
		stats, err := repo.Stats()
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		if maxPending > 0 && stats.PendingCount > maxPending {
			return fmt.Errorf("outbox backlog %d exceeds %d", stats.PendingCount, maxPending)
		}
		return nil
	})
}

// startMetricsServer запускает HTTP-сервер с /metrics и health-эндпоинтами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("metrics available at %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing gRPC server stop")
		server.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

func shutdownAdoptionService(svc *grpcsvc.AdoptionService, logger *log.Entry) {
	if svc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("pending notifications were not drained")
	}
}

func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("background workers did not stop in time")
	}
}
