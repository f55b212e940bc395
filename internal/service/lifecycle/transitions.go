package lifecycle

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/metrics"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
	"github.com/vladislavdragonenkov/shelter/internal/policy"
)

// effects выполняет необязательные шаги после сохранения нового статуса.
type effects func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest)

// Accept одобряет заявку: питомец помечается усыновлённым, заявителю уходит уведомление.
func (m *manager) Accept(ctx context.Context, requestID, actorID string) (Outcome, error) {
	return m.transition(ctx, domain.TransitionAccept, requestID, actorID, nil,
		func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest) {
			pet := m.updatePet(out, req, (*domain.Pet).MarkAdopted)
			m.notify(ctx, out, req, notification.KindAcceptance, pet, "")
		})
}

// Reject отклоняет заявку и возвращает питомца в каталог.
func (m *manager) Reject(ctx context.Context, requestID, actorID string) (Outcome, error) {
	return m.transition(ctx, domain.TransitionReject, requestID, actorID, nil,
		func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest) {
			pet := m.updatePet(out, req, (*domain.Pet).MarkAvailable)
			m.notify(ctx, out, req, notification.KindRejection, pet, "")
		})
}

// RequestModification возвращает заявку заявителю на доработку. Пустая заметка допустима.
func (m *manager) RequestModification(ctx context.Context, requestID, actorID, note string) (Outcome, error) {
	return m.transition(ctx, domain.TransitionModify, requestID, actorID,
		func(req *domain.AdoptionRequest) { req.CorrectionNote = note },
		func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest) {
			pet := m.lookupPet(req)
			m.notify(ctx, out, req, notification.KindModification, pet, note)
		})
}

// Cancel отзывает заявку и уведомляет заявителя. Слот записи сохраняется, если не включён
// WithReleaseAppointmentOnCancel; сохранённый слот упоминается в письме.
func (m *manager) Cancel(ctx context.Context, requestID, actorID string) (Outcome, error) {
	return m.transition(ctx, domain.TransitionCancel, requestID, actorID, nil,
		func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest) {
			pet := m.updatePet(out, req, (*domain.Pet).MarkAvailable)
			var when time.Time
			if m.releaseOnCancel {
				m.releaseAppointment(out, req)
			} else {
				when = m.appointmentTime(req)
			}
			m.notifyAt(ctx, out, req, notification.KindCancellation, pet, "", when)
		})
}

// CancelAppointment отзывает заявку вместе с записью на визит.
func (m *manager) CancelAppointment(ctx context.Context, requestID, actorID string) (Outcome, error) {
	return m.transition(ctx, domain.TransitionCancelAppointment, requestID, actorID, nil,
		func(ctx context.Context, out *Outcome, req *domain.AdoptionRequest) {
			// дата нужна письму, а после освобождения слот может уйти другому заявителю
			when := m.appointmentTime(req)
			pet := m.updatePet(out, req, (*domain.Pet).MarkAvailable)
			m.releaseAppointment(out, req)
			m.notifyAt(ctx, out, req, notification.KindAppointmentCancelled, pet, "", when)
		})
}

// transition — общий каркас операций над существующей заявкой:
// проверка id → блокировка → загрузка → проверка перехода → сохранение статуса → необязательные шаги.
func (m *manager) transition(
	ctx context.Context,
	t domain.Transition,
	requestID, actorID string,
	apply func(*domain.AdoptionRequest),
	after effects,
) (out Outcome, err error) {
	out = Outcome{Transition: t}
	started := time.Now()
	m.operationStarted()

	ctx, span := m.tracer.Start(ctx, "lifecycle."+string(t), trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("actor.id", actorID),
	))
	defer func() { m.finish(span, out, err, started) }()

	logger := m.logger.WithFields(log.Fields{
		"operation":  t,
		"request_id": requestID,
		"actor_id":   actorID,
	})

	if err = m.policy.CheckID(t, requestID); err != nil {
		return out, err
	}

	unlock, err := m.locker.Lock(ctx, requestID)
	if err != nil {
		return out, fmt.Errorf("%s: lock request %s: %w", t, requestID, err)
	}
	defer unlock()

	stepStarted := time.Now()
	req, err := m.requests.Get(requestID)
	m.observeStep(domain.StepLoadRequest, stepStarted)
	if err != nil {
		logger.WithError(err).Warn("load request failed")
		return out, fmt.Errorf("%s: load request %s: %w", t, requestID, err)
	}
	out.Request = req

	verdict, err := m.policy.Evaluate(t, req)
	if err != nil {
		logger.WithError(err).WithField("status", req.Status).Info("transition rejected by policy")
		return out, err
	}
	if verdict == policy.AlreadyApplied {
		out.AlreadyApplied = true
		logger.WithField("status", req.Status).Debug("transition already applied")
		return out, nil
	}

	previous := req.Status
	target, _ := policy.Target(t)
	req.Status = target
	req.UpdatedAt = m.now()
	if apply != nil {
		apply(&req)
	}
	if err = m.save(&req); err != nil {
		logger.WithError(err).Error("persist request status failed")
		return out, fmt.Errorf("%s: save request %s: %w", t, requestID, err)
	}
	out.Request = req

	logger.WithFields(log.Fields{
		"from": previous,
		"to":   req.Status,
	}).Info("request status changed")

	if after != nil {
		after(ctx, &out, &req)
	}
	m.emitEvent(&out, t, req, actorID, previous)
	out.Request = req
	return out, nil
}

// save сохраняет заявку и синхронизирует локальную версию с хранилищем.
func (m *manager) save(req *domain.AdoptionRequest) error {
	started := time.Now()
	defer m.observeStep(domain.StepSaveRequest, started)

	id, err := m.requests.Save(*req)
	if err != nil {
		return err
	}
	req.ID = id
	req.Version++
	return nil
}

func (m *manager) finish(span trace.Span, out Outcome, err error, started time.Time) {
	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultFailed
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	case out.AlreadyApplied:
		result = metrics.ResultAlreadyApplied
		span.SetAttributes(attribute.Bool("request.already_applied", true))
	default:
		span.SetAttributes(
			attribute.String("request.status", string(out.Request.Status)),
			attribute.Int("request.failed_steps", len(out.Failures())),
		)
	}
	span.End()

	if m.metrics != nil {
		m.metrics.OperationFinished(string(out.Transition), result, time.Since(started))
	}
}

func (m *manager) operationStarted() {
	if m.metrics != nil {
		m.metrics.OperationStarted()
	}
}

func (m *manager) observeStep(step domain.LifecycleStep, started time.Time) {
	if m.metrics != nil {
		m.metrics.RecordStepDuration(string(step), time.Since(started))
	}
}

func (m *manager) stepFailed(out *Outcome, step domain.LifecycleStep, err error) {
	out.record(StepResult{Step: step, Err: err})
	if m.metrics != nil {
		m.metrics.RecordStepFailure(string(step))
	}
}
