package domain

import (
	"strings"
	"time"
)

// RequestStatus описывает жизненный цикл заявки на усыновление.
type RequestStatus string

const (
	// RequestStatusPending — заявка подана и ждёт решения администратора.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved — заявка одобрена, питомец считается усыновлённым.
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected — заявка отклонена, питомец снова доступен.
	RequestStatusRejected RequestStatus = "rejected"
	// RequestStatusRequiresModification — заявителя попросили исправить данные.
	RequestStatusRequiresModification RequestStatus = "requires_modification"
	// RequestStatusCancelled — заявка отозвана, слот записи сохраняется.
	RequestStatusCancelled RequestStatus = "cancelled"
	// RequestStatusAppointmentCancelled — заявка отозвана вместе с записью на визит.
	RequestStatusAppointmentCancelled RequestStatus = "appointment_cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending,
		RequestStatusApproved,
		RequestStatusRejected,
		RequestStatusRequiresModification,
		RequestStatusCancelled,
		RequestStatusAppointmentCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса больше нет переходов.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled, RequestStatusAppointmentCancelled:
		return true
	default:
		return false
	}
}

// AdoptionReasons — ответы анкеты, приложенные к заявке.
type AdoptionReasons struct {
	Motivation      string
	PreviousPets    string
	AcceptsFollowUp bool
	HousingDetails  string
}

// AdoptionRequest агрегирует состояние заявки. Связи с питомцем, заявителем и слотом
// хранятся только идентификаторами.
type AdoptionRequest struct {
	ID             string
	RequesterID    string
	PetID          string
	AppointmentID  string
	Status         RequestStatus
	CorrectionNote string
	Reasons        AdoptionReasons
	SubmittedAt    time.Time
	UpdatedAt      time.Time
	Version        int64
}

// Validate проверяет поля, обязательные для подачи заявки.
func (r *AdoptionRequest) Validate() []error {
	var errs []error

	if strings.TrimSpace(r.RequesterID) == "" {
		errs = append(errs, ErrRequesterRequired)
	}
	if strings.TrimSpace(r.PetID) == "" {
		errs = append(errs, ErrPetRequired)
	}
	if r.Status != "" && !r.Status.Valid() {
		errs = append(errs, ErrUnknownStatus)
	}

	return errs
}

// HasPet сообщает, привязан ли к заявке питомец.
func (r *AdoptionRequest) HasPet() bool {
	return r.PetID != ""
}

// HasAppointment сообщает, привязан ли к заявке слот записи.
func (r *AdoptionRequest) HasAppointment() bool {
	return r.AppointmentID != ""
}
