package lifecycle

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// ResolveAppointment находит слот, связанный с заявкой. Если AppointmentID задан и слот
// существует, он возвращается напрямую; если id пуст или слот не найден, берётся первый
// слот заявителя для того же питомца. found=false без ошибки означает, что подходящего слота нет.
// Для устаревшего id без совпадения по заявителю и питомцу возвращается ошибка загрузки слота.
func ResolveAppointment(appointments domain.AppointmentRepository, req domain.AdoptionRequest) (appt domain.Appointment, found bool, err error) {
	if appointments == nil {
		return domain.Appointment{}, false, nil
	}

	if !req.HasAppointment() {
		return findByRequesterAndPet(appointments, req)
	}

	appt, err = appointments.Get(req.AppointmentID)
	if err == nil {
		return appt, true, nil
	}
	loadErr := fmt.Errorf("load appointment %s: %w", req.AppointmentID, err)
	if !domain.IsNotFound(err) {
		return domain.Appointment{}, false, loadErr
	}

	appt, found, err = findByRequesterAndPet(appointments, req)
	switch {
	case err != nil:
		return domain.Appointment{}, false, errors.Join(loadErr, err)
	case !found:
		return domain.Appointment{}, false, loadErr
	}
	return appt, true, nil
}

func findByRequesterAndPet(appointments domain.AppointmentRepository, req domain.AdoptionRequest) (domain.Appointment, bool, error) {
	if req.RequesterID == "" || req.PetID == "" {
		return domain.Appointment{}, false, nil
	}

	candidates, err := appointments.ListByRequester(req.RequesterID)
	if err != nil {
		return domain.Appointment{}, false, fmt.Errorf("list appointments of requester %s: %w", req.RequesterID, err)
	}
	for _, c := range candidates {
		if c.PetID == req.PetID {
			return c, true, nil
		}
	}
	return domain.Appointment{}, false, nil
}
