package domain

import "errors"

var (
	// ErrRequestIDRequired — пустой или пробельный идентификатор заявки.
	ErrRequestIDRequired = errors.New("request_id is required")
	// Ошибка отсутствующего идентификатора заявителя.
	ErrRequesterRequired = errors.New("requester_id is required")
	// Ошибка отсутствующего идентификатора питомца.
	ErrPetRequired = errors.New("pet_id is required")
	// Ошибка отсутствующего идентификатора слота записи.
	ErrAppointmentIDRequired = errors.New("appointment_id is required")
	// ErrInvalidTransition — переход не разрешён таблицей состояний заявки.
	ErrInvalidTransition = errors.New("invalid request status transition")
	// ErrTransitionDenied — переход отклонён дополнительным правилом политики.
	ErrTransitionDenied = errors.New("request transition denied by policy")
	// ErrUnknownStatus — статус заявки не входит в перечень поддерживаемых.
	ErrUnknownStatus = errors.New("unknown request status")

	// ErrRequestNotFound возвращается, если заявка не найдена в репозитории.
	ErrRequestNotFound = errors.New("adoption request not found")
	// ErrPetNotFound возвращается, если питомец не найден.
	ErrPetNotFound = errors.New("pet not found")
	// ErrAppointmentNotFound возвращается, если слот записи не найден.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrRequesterNotFound возвращается, если заявитель не найден.
	ErrRequesterNotFound = errors.New("requester not found")

	// ErrReservationConflict — слот уже занят другим заявителем.
	ErrReservationConflict = errors.New("appointment slot is no longer free")
	// ErrRequestVersionConflict сигнализирует о конфликте версий при сохранении заявки.
	ErrRequestVersionConflict = errors.New("adoption request version conflict")

	// ErrInvalidAddress — адрес получателя не проходит проверку формата.
	ErrInvalidAddress = errors.New("invalid recipient address")
	// ErrEmptySubject — пустая тема уведомления.
	ErrEmptySubject = errors.New("notification subject is empty")
	// ErrEmptyBody — пустое тело уведомления.
	ErrEmptyBody = errors.New("notification body is empty")
	// ErrNotificationFailed — сбой внешнего почтового сервиса.
	ErrNotificationFailed = errors.New("notification delivery failed")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyFingerprintRequired — не передан отпечаток запроса.
	ErrIdempotencyFingerprintRequired = errors.New("idempotency fingerprint is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже используется.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyFingerprintMismatch — ключ переиспользован для другой операции или тела.
	ErrIdempotencyFingerprintMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyUnresolved — попытка зафиксировать незавершённый статус.
	ErrIdempotencyUnresolved = errors.New("idempotency outcome must be completed or failed")
	// ErrIdempotencyKeyNotFound — записи по ключу нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrRequestVersionConflict)
}

// IsNotFound проверяет, что ошибка означает отсутствие сущности в хранилище.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrPetNotFound) ||
		errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, ErrRequesterNotFound)
}

// IsValidation проверяет, что ошибка относится к входным данным или правилам переходов.
func IsValidation(err error) bool {
	return errors.Is(err, ErrRequestIDRequired) ||
		errors.Is(err, ErrRequesterRequired) ||
		errors.Is(err, ErrPetRequired) ||
		errors.Is(err, ErrAppointmentIDRequired) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTransitionDenied) ||
		errors.Is(err, ErrUnknownStatus)
}

// IsNotificationError проверяет, что ошибка пришла от шлюза уведомлений.
func IsNotificationError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrEmptySubject) ||
		errors.Is(err, ErrEmptyBody) ||
		errors.Is(err, ErrNotificationFailed)
}

// IsIdempotencyConflict проверяет конфликт повторного использования idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyFingerprintMismatch)
}
