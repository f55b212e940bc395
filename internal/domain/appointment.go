package domain

import "time"

// Appointment — слот визита в приют. Занятый слот привязан к заявителю.
type Appointment struct {
	ID          string
	RequesterID string
	PetID       string
	ScheduledAt time.Time
	Booked      bool
	UpdatedAt   time.Time
}

// Free сообщает, можно ли забронировать слот.
func (a *Appointment) Free() bool {
	return !a.Booked
}
