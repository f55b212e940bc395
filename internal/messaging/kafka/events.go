package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// EventType определяет тип события.
type EventType string

const (
	EventTypeRequestSubmitted             EventType = "adoption.request.submitted"
	EventTypeRequestAccepted              EventType = "adoption.request.accepted"
	EventTypeRequestRejected              EventType = "adoption.request.rejected"
	EventTypeRequestModificationRequested EventType = "adoption.request.modification_requested"
	EventTypeRequestCancelled             EventType = "adoption.request.cancelled"
	EventTypeAppointmentCancelled         EventType = "adoption.appointment.cancelled"
)

// Topics для Kafka.
const (
	TopicAdoptionEvents  = "shelter.adoption.events"
	TopicDeadLetterQueue = "shelter.dlq"
)

// EventTypeFor сопоставляет операцию жизненного цикла с типом события.
func EventTypeFor(t domain.Transition) EventType {
	switch t {
	case domain.TransitionSubmit:
		return EventTypeRequestSubmitted
	case domain.TransitionAccept:
		return EventTypeRequestAccepted
	case domain.TransitionReject:
		return EventTypeRequestRejected
	case domain.TransitionModify:
		return EventTypeRequestModificationRequested
	case domain.TransitionCancel:
		return EventTypeRequestCancelled
	case domain.TransitionCancelAppointment:
		return EventTypeAppointmentCancelled
	default:
		return EventType("adoption.request." + string(t))
	}
}

// RequestEvent — событие изменения заявки, публикуемое напрямую в Kafka.
type RequestEvent struct {
	EventType     EventType      `json:"event_type"`
	RequestID     string         `json:"request_id"`
	RequesterID   string         `json:"requester_id,omitempty"`
	PetID         string         `json:"pet_id,omitempty"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	Status        string         `json:"status"`
	ActorID       string         `json:"actor_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewRequestEvent создаёт событие по состоянию заявки после перехода.
func NewRequestEvent(t domain.Transition, req domain.AdoptionRequest, actorID string, metadata map[string]any) *RequestEvent {
	return &RequestEvent{
		EventType:     EventTypeFor(t),
		RequestID:     req.ID,
		RequesterID:   req.RequesterID,
		PetID:         req.PetID,
		AppointmentID: req.AppointmentID,
		Status:        string(req.Status),
		ActorID:       actorID,
		Timestamp:     time.Now().UTC(),
		Metadata:      metadata,
	}
}
