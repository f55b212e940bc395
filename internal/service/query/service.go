// Package query собирает представления заявок для списков и карточек.
package query

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
)

// RequestView — заявка вместе со связанными сущностями. Отсутствующие связи оставляют поля
// пустыми, причина попадает в LookupErrors.
type RequestView struct {
	Request       domain.AdoptionRequest
	Requester     *domain.Requester
	Pet           *domain.Pet
	AppointmentID string
	AppointmentAt *time.Time
	Timeline      []domain.TimelineEvent
	LookupErrors  []error
}

// Dependencies — хранилища, из которых читает сервис.
type Dependencies struct {
	Requests     domain.RequestRepository
	Pets         domain.PetRepository
	Appointments domain.AppointmentRepository
	Requesters   domain.RequesterRepository
	Timeline     domain.TimelineRepository
}

// Service реализует чтение заявок, каталога питомцев и свободных слотов.
type Service struct {
	deps   Dependencies
	logger *log.Entry
	tracer trace.Tracer
}

// NewService создаёт сервис чтения.
func NewService(deps Dependencies, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "query")
	}
	return &Service{
		deps:   deps,
		logger: logger,
		tracer: otel.Tracer("github.com/vladislavdragonenkov/shelter/internal/service/query"),
	}
}

// List возвращает все заявки в порядке хранилища. Ошибкой считается только сбой чтения заявок.
func (s *Service) List(ctx context.Context) ([]RequestView, error) {
	_, span := s.tracer.Start(ctx, "query.list")
	defer span.End()

	requests, err := s.deps.Requests.List()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return s.views(requests), nil
}

// ListByRequester возвращает заявки одного заявителя.
func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]RequestView, error) {
	_, span := s.tracer.Start(ctx, "query.list_by_requester", trace.WithAttributes(attribute.String("requester.id", requesterID)))
	defer span.End()

	if requesterID == "" {
		return nil, domain.ErrRequesterRequired
	}
	requests, err := s.deps.Requests.ListByRequester(requesterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("list requests of %s: %w", requesterID, err)
	}
	return s.views(requests), nil
}

// Get возвращает карточку заявки вместе с историей.
func (s *Service) Get(ctx context.Context, requestID string) (RequestView, error) {
	_, span := s.tracer.Start(ctx, "query.get", trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	if requestID == "" {
		return RequestView{}, domain.ErrRequestIDRequired
	}
	req, err := s.deps.Requests.Get(requestID)
	if err != nil {
		return RequestView{}, fmt.Errorf("get request %s: %w", requestID, err)
	}

	view := s.view(req)
	if s.deps.Timeline != nil {
		events, err := s.deps.Timeline.List(requestID)
		if err != nil {
			s.logger.WithError(err).WithField("request_id", requestID).Warn("timeline lookup failed")
			view.LookupErrors = append(view.LookupErrors, fmt.Errorf("timeline: %w", err))
		} else {
			view.Timeline = events
		}
	}
	return view, nil
}

// ListAvailablePets возвращает доступных питомцев; пустой вид или "all" означает любой вид.
func (s *Service) ListAvailablePets(ctx context.Context, species string) ([]domain.Pet, error) {
	_, span := s.tracer.Start(ctx, "query.list_available_pets", trace.WithAttributes(attribute.String("pet.species", species)))
	defer span.End()

	pets, err := s.deps.Pets.ListAvailableBySpecies(species)
	if err != nil {
		return nil, fmt.Errorf("list available pets: %w", err)
	}
	return pets, nil
}

// ListFreeAppointments возвращает свободные слоты в хронологическом порядке.
func (s *Service) ListFreeAppointments(ctx context.Context) ([]domain.Appointment, error) {
	_, span := s.tracer.Start(ctx, "query.list_free_appointments")
	defer span.End()

	slots, err := s.deps.Appointments.ListFree()
	if err != nil {
		return nil, fmt.Errorf("list free appointments: %w", err)
	}
	return slots, nil
}

func (s *Service) views(requests []domain.AdoptionRequest) []RequestView {
	views := make([]RequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, s.view(req))
	}
	return views
}

// view соединяет заявку с заявителем, питомцем и слотом. Сбои связей не прерывают сборку.
func (s *Service) view(req domain.AdoptionRequest) RequestView {
	view := RequestView{Request: req, AppointmentID: req.AppointmentID}
	logger := s.logger.WithField("request_id", req.ID)

	if req.RequesterID != "" && s.deps.Requesters != nil {
		requester, err := s.deps.Requesters.Get(req.RequesterID)
		if err != nil {
			logger.WithError(err).Debug("requester lookup failed")
			view.LookupErrors = append(view.LookupErrors, fmt.Errorf("requester %s: %w", req.RequesterID, err))
		} else {
			view.Requester = &requester
		}
	}

	if req.HasPet() && s.deps.Pets != nil {
		pet, err := s.deps.Pets.Get(req.PetID)
		if err != nil {
			logger.WithError(err).Debug("pet lookup failed")
			view.LookupErrors = append(view.LookupErrors, fmt.Errorf("pet %s: %w", req.PetID, err))
		} else {
			view.Pet = &pet
		}
	}

	appt, found, err := lifecycle.ResolveAppointment(s.deps.Appointments, req)
	switch {
	case err != nil:
		logger.WithError(err).Debug("appointment lookup failed")
		view.LookupErrors = append(view.LookupErrors, err)
	case found:
		at := appt.ScheduledAt
		view.AppointmentID = appt.ID
		view.AppointmentAt = &at
	}
	return view
}
