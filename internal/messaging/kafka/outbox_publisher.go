package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const (
	// EnvelopeSchemaVersion растёт при несовместимых изменениях формата Envelope.
	EnvelopeSchemaVersion = 1
	// AggregateAdoptionRequest — тип агрегата событий заявки.
	AggregateAdoptionRequest = "adoption_request"
)

// Envelope — формат сообщений в топиках событий заявок и DLQ.
type Envelope struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	RequestID     string          `json:"request_id,omitempty"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает outbox-сообщение. Для событий заявки request_id дублирует
// aggregate_id, чтобы потребители фильтровали по заявке без разбора payload.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	env := Envelope{
		ID:            msg.ID,
		SchemaVersion: EnvelopeSchemaVersion,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage("null"),
		PublishedAt:   publishedAt.UTC(),
	}
	if len(msg.Payload) > 0 {
		env.Payload = json.RawMessage(msg.Payload)
	}
	if msg.AggregateType == AggregateAdoptionRequest {
		env.RequestID = msg.AggregateID
	}
	return env
}

// DecodeEnvelope разбирает сообщение топика событий или DLQ.
func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.ID == "" && env.AggregateID == "" {
		return Envelope{}, errors.New("envelope has neither id nor aggregate_id")
	}
	return env, nil
}

// Key — ключ партиционирования: события одной заявки попадают в одну партицию.
func (e Envelope) Key() string {
	switch {
	case e.RequestID != "":
		return e.RequestID
	case e.AggregateID != "":
		return e.AggregateID
	}
	return e.ID
}

// HasPayload сообщает, что payload не пуст и не null.
func (e Envelope) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicAdoptionEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// Publish отправляет событие в конверте Envelope.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}
	env := NewEnvelope(event, p.now())
	if err := p.producer.PublishEvent(p.topic, env.Key(), env); err != nil {
		return fmt.Errorf("publish %s for %s: %w", env.EventType, env.Key(), err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
