package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shelter/internal/metrics"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
)

// updatePet загружает питомца заявки, применяет mutate и сохраняет.
// Возвращает питомца (даже если сохранить не удалось) или nil, если его нет.
func (m *manager) updatePet(out *Outcome, req *domain.AdoptionRequest, mutate func(*domain.Pet)) *domain.Pet {
	if !req.HasPet() {
		out.record(StepResult{Step: domain.StepUpdatePet, Skipped: true, Detail: "request has no pet"})
		return nil
	}

	started := time.Now()
	defer m.observeStep(domain.StepUpdatePet, started)

	logger := m.logger.WithFields(log.Fields{
		"request_id": req.ID,
		"pet_id":     req.PetID,
	})

	pet, err := m.pets.Get(req.PetID)
	if err != nil {
		logger.WithError(err).Warn("pet not available for update")
		m.stepFailed(out, domain.StepUpdatePet, fmt.Errorf("load pet %s: %w", req.PetID, err))
		return nil
	}

	mutate(&pet)
	pet.UpdatedAt = m.now()
	if _, err := m.pets.Save(pet); err != nil {
		logger.WithError(err).Warn("persist pet failed")
		m.stepFailed(out, domain.StepUpdatePet, fmt.Errorf("save pet %s: %w", req.PetID, err))
		return &pet
	}

	logger.WithField("pet_status", pet.Status).Debug("pet updated")
	out.record(StepResult{Step: domain.StepUpdatePet, Detail: string(pet.Status)})
	return &pet
}

// lookupPet нужен только для текста уведомления, ошибки не фиксируются в Outcome.
func (m *manager) lookupPet(req *domain.AdoptionRequest) *domain.Pet {
	if !req.HasPet() {
		return nil
	}
	pet, err := m.pets.Get(req.PetID)
	if err != nil {
		m.logger.WithError(err).WithField("pet_id", req.PetID).Debug("pet lookup for notification failed")
		return nil
	}
	return &pet
}

// releaseAppointment освобождает слот заявки; сбой только логируется.
func (m *manager) releaseAppointment(out *Outcome, req *domain.AdoptionRequest) {
	if !req.HasAppointment() {
		out.record(StepResult{Step: domain.StepReleaseAppointment, Skipped: true, Detail: "request has no appointment"})
		return
	}

	started := time.Now()
	defer m.observeStep(domain.StepReleaseAppointment, started)

	if err := m.appointments.Release(req.AppointmentID); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"request_id":     req.ID,
			"appointment_id": req.AppointmentID,
		}).Warn("appointment could not be released")
		m.stepFailed(out, domain.StepReleaseAppointment, fmt.Errorf("release appointment %s: %w", req.AppointmentID, err))
		return
	}
	out.record(StepResult{Step: domain.StepReleaseAppointment})
}

// appointmentTime возвращает время визита по заявке или нулевое время.
func (m *manager) appointmentTime(req *domain.AdoptionRequest) time.Time {
	appt, found, err := ResolveAppointment(m.appointments, *req)
	if err != nil {
		m.logger.WithError(err).WithField("request_id", req.ID).Debug("appointment lookup failed")
		return time.Time{}
	}
	if !found {
		return time.Time{}
	}
	return appt.ScheduledAt
}

func (m *manager) notify(ctx context.Context, out *Outcome, req *domain.AdoptionRequest, kind notification.Kind, pet *domain.Pet, note string) {
	var when time.Time
	if kind == notification.KindAcceptance || kind == notification.KindConfirmation {
		when = m.appointmentTime(req)
	}
	m.notifyAt(ctx, out, req, kind, pet, note, when)
}

// notifyAt отправляет уведомление заявителю. Ошибка никогда не возвращается вызывающему:
// в синхронном режиме она попадает в Outcome, в асинхронном только в лог.
func (m *manager) notifyAt(ctx context.Context, out *Outcome, req *domain.AdoptionRequest, kind notification.Kind, pet *domain.Pet, note string, when time.Time) {
	logger := m.logger.WithFields(log.Fields{
		"request_id":   req.ID,
		"requester_id": req.RequesterID,
		"kind":         kind,
	})

	if m.notifier == nil || m.requesters == nil {
		m.notifySkipped(out, kind, "notifications disabled")
		return
	}

	requester, err := m.requesters.Get(req.RequesterID)
	if err != nil {
		logger.WithError(err).Warn("requester not available for notification")
		m.stepFailed(out, domain.StepLoadRequester, fmt.Errorf("load requester %s: %w", req.RequesterID, err))
		m.notifySkipped(out, kind, "requester unavailable")
		return
	}
	if !requester.HasContact() {
		logger.Debug("requester has no contact address")
		m.notifySkipped(out, kind, "requester has no contact address")
		return
	}

	data := notification.Data{
		RecipientName: requester.Name,
		AppointmentAt: when,
		Note:          note,
	}
	if pet != nil {
		data.PetName = pet.Name
	}
	msg, err := m.templates.Render(kind, requester.Email, data)
	if err != nil {
		logger.WithError(err).Error("render notification failed")
		m.recordNotification(kind, err)
		m.stepFailed(out, domain.StepNotify, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err))
		return
	}

	if m.asyncNotify {
		m.notifyWG.Add(1)
		go func() {
			defer m.notifyWG.Done()
			if err := m.send(context.WithoutCancel(ctx), kind, msg); err != nil {
				logger.WithError(err).Warn("async notification failed")
			}
		}()
		out.record(StepResult{Step: domain.StepNotify, Detail: "dispatched"})
		return
	}

	if err := m.send(ctx, kind, msg); err != nil {
		logger.WithError(err).Warn("notification failed")
		m.stepFailed(out, domain.StepNotify, err)
		return
	}
	out.record(StepResult{Step: domain.StepNotify, Detail: string(kind)})
}

// send ограничивает вызов шлюза таймаутом и приводит ошибку к ErrNotificationFailed.
func (m *manager) send(ctx context.Context, kind notification.Kind, msg domain.Message) error {
	started := time.Now()
	defer m.observeStep(domain.StepNotify, started)

	sendCtx, cancel := context.WithTimeout(ctx, m.notifyTimeout)
	defer cancel()

	err := m.notifier.Send(sendCtx, msg)
	if err != nil && !domain.IsNotificationError(err) {
		err = fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	m.recordNotification(kind, err)
	return err
}

func (m *manager) notifySkipped(out *Outcome, kind notification.Kind, reason string) {
	out.record(StepResult{Step: domain.StepNotify, Skipped: true, Detail: reason})
	if m.metrics != nil {
		m.metrics.RecordNotification(string(kind), metrics.ResultSkipped)
	}
}

func (m *manager) recordNotification(kind notification.Kind, err error) {
	if m.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	m.metrics.RecordNotification(string(kind), result)
}

// emitEvent записывает событие перехода в outbox и timeline и, если настроено, публикует его в Kafka.
func (m *manager) emitEvent(out *Outcome, t domain.Transition, req domain.AdoptionRequest, actorID string, previous domain.RequestStatus) {
	if m.outbox == nil && m.timeline == nil && m.events == nil {
		return
	}

	eventType := string(kafka.EventTypeFor(t))
	logger := m.logger.WithFields(log.Fields{
		"request_id": req.ID,
		"event":      eventType,
	})

	payload := map[string]any{
		"request_id":      req.ID,
		"requester_id":    req.RequesterID,
		"status":          string(req.Status),
		"previous_status": string(previous),
		"actor_id":        actorID,
		"version":         req.Version,
		"updated_at":      req.UpdatedAt.Format(time.RFC3339Nano),
	}
	if req.PetID != "" {
		payload["pet_id"] = req.PetID
	}
	if req.AppointmentID != "" {
		payload["appointment_id"] = req.AppointmentID
	}
	if t == domain.TransitionModify {
		payload["note"] = req.CorrectionNote
	}

	var errs []error

	if m.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.WithError(err).Error("marshal event failed")
			errs = append(errs, fmt.Errorf("marshal event: %w", err))
		} else if _, err := m.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: kafka.AggregateAdoptionRequest,
			AggregateID:   req.ID,
			EventType:     eventType,
			Payload:       data,
		}); err != nil {
			logger.WithError(err).Error("enqueue event failed")
			errs = append(errs, fmt.Errorf("enqueue event: %w", err))
		} else if m.metrics != nil {
			m.metrics.RecordOutboxEvent()
		}
	}

	if m.timeline != nil {
		event := domain.TimelineEvent{
			RequestID: req.ID,
			Type:      eventType,
			ActorID:   actorID,
			Occurred:  req.UpdatedAt,
		}
		if t == domain.TransitionModify {
			event.Reason = req.CorrectionNote
		}
		if event.Occurred.IsZero() {
			event.Occurred = m.now()
		}
		if err := m.timeline.Append(event); err != nil {
			logger.WithError(err).Warn("append timeline event failed")
			errs = append(errs, fmt.Errorf("append timeline event: %w", err))
		} else if m.metrics != nil {
			m.metrics.RecordTimelineEvent()
		}
	}

	if m.events != nil {
		topic := m.eventsTopic
		if topic == "" {
			topic = kafka.TopicAdoptionEvents
		}
		event := kafka.NewRequestEvent(t, req, actorID, map[string]any{"previous_status": string(previous)})
		if err := m.events.PublishEvent(topic, req.ID, event); err != nil {
			logger.WithError(err).Warn("failed to publish request event to kafka")
			errs = append(errs, fmt.Errorf("publish event: %w", err))
		}
	}

	if len(errs) > 0 {
		m.stepFailed(out, domain.StepEmitEvent, errors.Join(errs...))
		return
	}
	out.record(StepResult{Step: domain.StepEmitEvent, Detail: eventType})
}
