// Package grpcsvc публикует операции над заявками на усыновление через gRPC.
package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/shelter/internal/service/query"
)

// AdoptionService реализует AdoptionServiceServer поверх менеджера жизненного цикла и сервиса чтения.
type AdoptionService struct {
	manager lifecycle.Manager
	queries *query.Service
	guard   *idempotency.Guard
	logger  *log.Entry
}

var _ AdoptionServiceServer = (*AdoptionService)(nil)

// NewAdoptionService конструирует сервис. С nil idemRepo idempotency-key не требуется.
func NewAdoptionService(
	manager lifecycle.Manager,
	queries *query.Service,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *AdoptionService {
	if logger == nil {
		logger = log.New().WithField("component", "adoption-service")
	}
	return &AdoptionService{
		manager: manager,
		queries: queries,
		guard: idempotency.NewGuard(idemRepo,
			idempotency.WithClassifier(classifyStatus),
			idempotency.WithGuardLogger(logger),
		),
		logger: logger,
	}
}

// Submit подаёт заявку и бронирует слот записи.
func (s *AdoptionService) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.withIdempotency(ctx, MethodSubmit, in, func(ctx context.Context) (*structpb.Struct, error) {
		outcome, err := s.manager.Submit(ctx, requestFromStruct(in), stringField(in, "appointment_id"))
		return s.respond(outcome, err)
	})
}

// Accept одобряет заявку.
func (s *AdoptionService) Accept(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, MethodAccept, in, s.manager.Accept)
}

// Reject отклоняет заявку.
func (s *AdoptionService) Reject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, MethodReject, in, s.manager.Reject)
}

// RequestModification просит заявителя исправить заявку; note обязателен.
func (s *AdoptionService) RequestModification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	note := stringField(in, "note")
	if note == "" {
		return nil, status.Error(codes.InvalidArgument, "note is required")
	}
	return s.withIdempotency(ctx, MethodRequestModification, in, func(ctx context.Context) (*structpb.Struct, error) {
		outcome, err := s.manager.RequestModification(ctx, stringField(in, "request_id"), stringField(in, "actor_id"), note)
		return s.respond(outcome, err)
	})
}

// Cancel отзывает заявку.
func (s *AdoptionService) Cancel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, MethodCancel, in, s.manager.Cancel)
}

// CancelAppointment отзывает заявку и освобождает слот записи.
func (s *AdoptionService) CancelAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, MethodCancelAppointment, in, s.manager.CancelAppointment)
}

type transitionFunc func(ctx context.Context, requestID, actorID string) (lifecycle.Outcome, error)

func (s *AdoptionService) transition(ctx context.Context, method string, in *structpb.Struct, op transitionFunc) (*structpb.Struct, error) {
	return s.withIdempotency(ctx, method, in, func(ctx context.Context) (*structpb.Struct, error) {
		outcome, err := op(ctx, stringField(in, "request_id"), stringField(in, "actor_id"))
		return s.respond(outcome, err)
	})
}

func (s *AdoptionService) respond(outcome lifecycle.Outcome, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	for _, failed := range outcome.Failures() {
		s.logger.WithError(failed.Err).WithFields(log.Fields{
			"request_id": outcome.Request.ID,
			"operation":  outcome.Transition,
			"step":       failed.Step,
		}).Debug("operation completed with failed best-effort step")
	}
	return toStruct(outcomeFields(outcome))
}

// GetRequest возвращает карточку заявки с историей.
func (s *AdoptionService) GetRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	view, err := s.queries.Get(ctx, stringField(in, "request_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(viewFields(view))
}

// ListRequests возвращает все заявки или заявки одного заявителя, если задан requester_id.
func (s *AdoptionService) ListRequests(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var (
		views []query.RequestView
		err   error
	)
	if requesterID := stringField(in, "requester_id"); requesterID != "" {
		views, err = s.queries.ListByRequester(ctx, requesterID)
	} else {
		views, err = s.queries.List(ctx)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(listFields("requests", views, viewFields))
}

// ListAvailablePets возвращает доступных питомцев; species пустой или "all" снимает фильтр.
func (s *AdoptionService) ListAvailablePets(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pets, err := s.queries.ListAvailablePets(ctx, stringField(in, "species"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(listFields("pets", pets, petFields))
}

// ListFreeAppointments возвращает свободные слоты записи.
func (s *AdoptionService) ListFreeAppointments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	slots, err := s.queries.ListFreeAppointments(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(listFields("appointments", slots, appointmentFields))
}

// Shutdown дожидается асинхронных уведомлений менеджера или отмены ctx.
func (s *AdoptionService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.manager.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

