package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// appointmentRepositoryInMemory хранит слоты записи; Reserve/Release атомарны под мьютексом.
type appointmentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Appointment
}

// NewAppointmentRepository создаёт in-memory реализацию AppointmentRepository.
func NewAppointmentRepository() domain.AppointmentRepository {
	return &appointmentRepositoryInMemory{items: make(map[string]domain.Appointment)}
}

func (r *appointmentRepositoryInMemory) Get(id string) (domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.items[id]
	if !ok {
		return domain.Appointment{}, domain.ErrAppointmentNotFound
	}
	return appt, nil
}

func (r *appointmentRepositoryInMemory) List() ([]domain.Appointment, error) {
	return r.filter(func(domain.Appointment) bool { return true }), nil
}

func (r *appointmentRepositoryInMemory) ListByRequester(requesterID string) ([]domain.Appointment, error) {
	return r.filter(func(a domain.Appointment) bool { return a.RequesterID == requesterID }), nil
}

func (r *appointmentRepositoryInMemory) ListFree() ([]domain.Appointment, error) {
	return r.filter(func(a domain.Appointment) bool { return a.Free() }), nil
}

func (r *appointmentRepositoryInMemory) Save(appt domain.Appointment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.UpdatedAt = time.Now().UTC()
	r.items[appt.ID] = appt
	return appt.ID, nil
}

// Reserve бронирует слот, если он свободен, и привязывает к нему заявителя и питомца.
func (r *appointmentRepositoryInMemory) Reserve(id, requesterID, petID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.items[id]
	if !ok {
		return domain.ErrAppointmentNotFound
	}
	if appt.Booked {
		return domain.ErrReservationConflict
	}
	appt.Booked = true
	appt.RequesterID = requesterID
	appt.PetID = petID
	appt.UpdatedAt = time.Now().UTC()
	r.items[id] = appt
	return nil
}

// Release освобождает слот. Привязка к заявителю сохраняется для истории.
func (r *appointmentRepositoryInMemory) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.items[id]
	if !ok {
		return domain.ErrAppointmentNotFound
	}
	appt.Booked = false
	appt.UpdatedAt = time.Now().UTC()
	r.items[id] = appt
	return nil
}

// filter возвращает слоты в хронологическом порядке.
func (r *appointmentRepositoryInMemory) filter(keep func(domain.Appointment) bool) []domain.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Appointment, 0, len(r.items))
	for _, appt := range r.items {
		if keep(appt) {
			result = append(result, appt)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].ScheduledAt.Before(result[j].ScheduledAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ domain.AppointmentRepository = (*appointmentRepositoryInMemory)(nil)
