package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageAndSucceed()

	req := domain.AdoptionRequest{ID: "req-1", RequesterID: "u-1", PetID: "p-1", Status: domain.RequestStatusApproved}
	event := NewRequestEvent(domain.TransitionAccept, req, "admin-1", map[string]any{"pet_updated": true})

	if err := producer.PublishEvent(TopicAdoptionEvents, req.ID, event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewRequestEvent(domain.TransitionReject, domain.AdoptionRequest{ID: "req-1"}, "", nil)
	if err := producer.PublishEvent(TopicAdoptionEvents, "req-1", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer, nil)

	if err := producer.PublishEvent(TopicAdoptionEvents, "k", map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewRequestEvent(t *testing.T) {
	req := domain.AdoptionRequest{
		ID:            "req-123",
		RequesterID:   "u-1",
		PetID:         "p-1",
		AppointmentID: "a-1",
		Status:        domain.RequestStatusAppointmentCancelled,
	}

	event := NewRequestEvent(domain.TransitionCancelAppointment, req, "u-1", nil)

	if event.EventType != EventTypeAppointmentCancelled {
		t.Errorf("expected event type %s, got %s", EventTypeAppointmentCancelled, event.EventType)
	}
	if event.RequestID != "req-123" || event.AppointmentID != "a-1" {
		t.Errorf("unexpected ids: %+v", event)
	}
	if event.Status != string(domain.RequestStatusAppointmentCancelled) {
		t.Errorf("unexpected status %s", event.Status)
	}
	if event.Timestamp.IsZero() || time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestEventTypeFor(t *testing.T) {
	cases := map[domain.Transition]EventType{
		domain.TransitionSubmit: EventTypeRequestSubmitted,
		domain.TransitionAccept: EventTypeRequestAccepted,
		domain.TransitionReject: EventTypeRequestRejected,
		domain.TransitionModify: EventTypeRequestModificationRequested,
		domain.TransitionCancel: EventTypeRequestCancelled,
	}
	for transition, want := range cases {
		if got := EventTypeFor(transition); got != want {
			t.Errorf("EventTypeFor(%s) = %s, want %s", transition, got, want)
		}
	}
}
