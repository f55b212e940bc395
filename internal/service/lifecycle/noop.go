package lifecycle

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

type noopManager struct {
	logger *log.Entry
}

// NewNoop возвращает менеджер, который только логирует вызовы. Используется, когда
// хранилища не сконфигурированы (например, при проверке конфигурации).
func NewNoop(logger *log.Entry) Manager {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle-noop")
	}
	return &noopManager{logger: logger}
}

func (n *noopManager) Submit(_ context.Context, req domain.AdoptionRequest, appointmentID string) (Outcome, error) {
	n.logger.WithFields(log.Fields{
		"requester_id":   req.RequesterID,
		"pet_id":         req.PetID,
		"appointment_id": appointmentID,
	}).Info("noop lifecycle submit")
	return Outcome{Transition: domain.TransitionSubmit, Request: req}, nil
}

func (n *noopManager) Accept(_ context.Context, requestID, actorID string) (Outcome, error) {
	return n.log(domain.TransitionAccept, requestID, actorID), nil
}

func (n *noopManager) Reject(_ context.Context, requestID, actorID string) (Outcome, error) {
	return n.log(domain.TransitionReject, requestID, actorID), nil
}

func (n *noopManager) RequestModification(_ context.Context, requestID, actorID, _ string) (Outcome, error) {
	return n.log(domain.TransitionModify, requestID, actorID), nil
}

func (n *noopManager) Cancel(_ context.Context, requestID, actorID string) (Outcome, error) {
	return n.log(domain.TransitionCancel, requestID, actorID), nil
}

func (n *noopManager) CancelAppointment(_ context.Context, requestID, actorID string) (Outcome, error) {
	return n.log(domain.TransitionCancelAppointment, requestID, actorID), nil
}

func (n *noopManager) Wait() {}

func (n *noopManager) log(t domain.Transition, requestID, actorID string) Outcome {
	n.logger.WithFields(log.Fields{
		"operation":  t,
		"request_id": requestID,
		"actor_id":   actorID,
	}).Info("noop lifecycle transition")
	return Outcome{Transition: t, Request: domain.AdoptionRequest{ID: requestID}}
}
