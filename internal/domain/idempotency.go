package domain

import (
	"strings"
	"time"
)

// IdempotencyStatus — состояние ключа идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusCompleted  IdempotencyStatus = "completed"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// DefaultIdempotencyTTL — срок хранения ключа, если вызывающий не задал свой.
const DefaultIdempotencyTTL = 24 * time.Hour

// Valid сообщает, что статус известен хранилищу.
func (s IdempotencyStatus) Valid() bool {
	return s == IdempotencyStatusProcessing || s.Resolved()
}

// Resolved сообщает, что результат выполнения уже зафиксирован.
func (s IdempotencyStatus) Resolved() bool {
	return s == IdempotencyStatusCompleted || s == IdempotencyStatusFailed
}

// IdempotencyClaim — попытка выполнить мутирующую операцию под ключом.
type IdempotencyClaim struct {
	Key string
	// Operation — полное имя вызываемого метода.
	Operation   string
	Fingerprint string
	ExpiresAt   time.Time
}

// Normalize обрезает пробелы, проверяет обязательные поля и назначает срок по умолчанию.
func (c IdempotencyClaim) Normalize(now time.Time) (IdempotencyClaim, error) {
	c.Key = strings.TrimSpace(c.Key)
	c.Operation = strings.TrimSpace(c.Operation)
	c.Fingerprint = strings.TrimSpace(c.Fingerprint)
	switch {
	case c.Key == "":
		return c, ErrIdempotencyKeyRequired
	case c.Fingerprint == "":
		return c, ErrIdempotencyFingerprintRequired
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = now.Add(DefaultIdempotencyTTL)
	}
	return c, nil
}

// IdempotencyOutcome — результат первого выполнения, который получают повторы.
type IdempotencyOutcome struct {
	Status   IdempotencyStatus
	Response []byte
	// Code — код статуса транспорта для неуспешного выполнения.
	Code int
}

// IdempotencyRecord — сохранённый ключ вместе с результатом.
type IdempotencyRecord struct {
	IdempotencyClaim
	Status    IdempotencyStatus
	Response  []byte
	Code      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches сообщает, что повтор относится к той же операции с тем же телом.
func (r IdempotencyRecord) Matches(c IdempotencyClaim) bool {
	return r.Operation == c.Operation && r.Fingerprint == c.Fingerprint
}

// Expired сообщает, что срок хранения ключа истёк к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
