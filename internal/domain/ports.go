package domain

import (
	"context"
	"time"
)

// Message — уведомление для заявителя.
type Message struct {
	To      string
	Subject string
	Body    string
}

// NotificationGateway отправляет уведомления заявителям. Реализация сама проверяет
// адрес, тему и тело и возвращает ErrInvalidAddress, ErrEmptySubject или ErrEmptyBody.
type NotificationGateway interface {
	Send(ctx context.Context, msg Message) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит историю заявки.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(requestID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит ключи идемпотентности мутирующих вызовов.
type IdempotencyRepository interface {
	// Claim создаёт запись в статусе processing. Если ключ занят, возвращает существующую
	// запись вместе с ErrIdempotencyKeyAlreadyExists или ErrIdempotencyFingerprintMismatch.
	Claim(claim IdempotencyClaim) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	// Resolve фиксирует результат выполнения.
	Resolve(key string, outcome IdempotencyOutcome) error
	// DeleteExpired удаляет до limit просроченных ключей; limit <= 0 снимает ограничение.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// LifecycleStep задаёт константы шагов для метрик/логов.
type LifecycleStep string

const (
	StepLoadRequest        LifecycleStep = "load_request"
	StepReserveAppointment LifecycleStep = "reserve_appointment"
	StepSaveRequest        LifecycleStep = "save_request"
	StepUpdatePet          LifecycleStep = "update_pet"
	StepReleaseAppointment LifecycleStep = "release_appointment"
	StepLoadRequester      LifecycleStep = "load_requester"
	StepNotify             LifecycleStep = "notify"
	StepEmitEvent          LifecycleStep = "emit_event"
)

// Transition — операция жизненного цикла заявки.
type Transition string

const (
	TransitionSubmit            Transition = "submit"
	TransitionAccept            Transition = "accept"
	TransitionReject            Transition = "reject"
	TransitionModify            Transition = "modify"
	TransitionCancel            Transition = "cancel"
	TransitionCancelAppointment Transition = "cancel_appointment"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
