package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
)

// Submit подаёт новую заявку. Бронирование слота является единственным обязательным условием:
// при ErrReservationConflict ничего не сохраняется. Если сохранить заявку не удалось,
// забронированный слот освобождается.
func (m *manager) Submit(ctx context.Context, req domain.AdoptionRequest, appointmentID string) (out Outcome, err error) {
	out = Outcome{Transition: domain.TransitionSubmit}
	started := time.Now()
	m.operationStarted()

	if appointmentID != "" {
		req.AppointmentID = appointmentID
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := m.tracer.Start(ctx, "lifecycle.submit", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("requester.id", req.RequesterID),
		attribute.String("pet.id", req.PetID),
		attribute.String("appointment.id", req.AppointmentID),
	))
	defer func() { m.finish(span, out, err, started) }()

	logger := m.logger.WithFields(log.Fields{
		"operation":      domain.TransitionSubmit,
		"request_id":     req.ID,
		"requester_id":   req.RequesterID,
		"pet_id":         req.PetID,
		"appointment_id": req.AppointmentID,
	})

	now := m.now()
	req.Status = domain.RequestStatusPending
	req.CorrectionNote = ""
	req.SubmittedAt = now
	req.UpdatedAt = now
	req.Version = 0
	out.Request = req

	if err = m.policy.CheckSubmission(req); err != nil {
		return out, err
	}

	unlock, err := m.locker.Lock(ctx, req.ID)
	if err != nil {
		return out, fmt.Errorf("submit: lock request %s: %w", req.ID, err)
	}
	defer unlock()

	if req.HasAppointment() {
		stepStarted := time.Now()
		err = m.appointments.Reserve(req.AppointmentID, req.RequesterID, req.PetID)
		m.observeStep(domain.StepReserveAppointment, stepStarted)
		if err != nil {
			logger.WithError(err).Info("appointment reservation failed")
			return out, fmt.Errorf("submit: reserve appointment %s: %w", req.AppointmentID, err)
		}
		out.record(StepResult{Step: domain.StepReserveAppointment})
	}

	if err = m.save(&req); err != nil {
		logger.WithError(err).Error("persist request failed")
		if req.HasAppointment() {
			m.compensateReservation(logger, req.AppointmentID)
		}
		return out, fmt.Errorf("submit: save request: %w", err)
	}
	out.Request = req
	logger.Info("request submitted")

	pet := m.updatePet(&out, &req, (*domain.Pet).MarkReserved)
	m.notify(ctx, &out, &req, notification.KindConfirmation, pet, "")
	m.emitEvent(&out, domain.TransitionSubmit, req, req.RequesterID, "")
	out.Request = req
	return out, nil
}

func (m *manager) compensateReservation(logger *log.Entry, appointmentID string) {
	if err := m.appointments.Release(appointmentID); err != nil {
		logger.WithError(err).Error("release reserved appointment after failed submit")
		return
	}
	logger.Warn("reserved appointment released after failed submit")
}
