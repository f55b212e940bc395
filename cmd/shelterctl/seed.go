package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const (
	defaultAdminEmail = "admin@shelter.local"
	defaultAdminName  = "Administrator"
)

type catalogue struct {
	requesters   domain.RequesterRepository
	pets         domain.PetRepository
	appointments domain.AppointmentRepository
}

type seedOptions struct {
	adminEmail string
	adminName  string
	days       int
	start      time.Time
}

type seedReport struct {
	AdminID      string
	AdminCreated bool
	Pets         int
	Appointments int
}

var demoPets = []domain.Pet{
	{Name: "Luna", Species: "dog", Breed: "mixed", AgeYears: 3},
	{Name: "Milo", Species: "cat", Breed: "european shorthair", AgeYears: 2},
	{Name: "Toby", Species: "dog", Breed: "beagle", AgeYears: 5},
	{Name: "Nala", Species: "cat", Breed: "siamese", AgeYears: 1},
	{Name: "Kiwi", Species: "bird", Breed: "budgerigar", AgeYears: 1},
}

// slotHours — часы приёма (UTC), на которые создаются слоты каждого дня.
var slotHours = []int{10, 12, 16}

// seedCatalogue создаёт администратора, демо-питомцев и свободные слоты.
// Повторный запуск ничего не дублирует: существующий администратор и непустые каталоги пропускаются.
func seedCatalogue(c catalogue, opts seedOptions) (seedReport, error) {
	var report seedReport

	admin, err := c.requesters.FindByEmail(opts.adminEmail)
	switch {
	case err == nil:
		report.AdminID = admin.ID
	case errors.Is(err, domain.ErrRequesterNotFound):
		id, saveErr := c.requesters.Save(domain.Requester{
			Name:  opts.adminName,
			Email: opts.adminEmail,
			Admin: true,
		})
		if saveErr != nil {
			return report, fmt.Errorf("create admin requester: %w", saveErr)
		}
		report.AdminID = id
		report.AdminCreated = true
	default:
		return report, fmt.Errorf("find admin requester: %w", err)
	}

	pets, err := c.pets.List()
	if err != nil {
		return report, fmt.Errorf("list pets: %w", err)
	}
	if len(pets) == 0 {
		for _, pet := range demoPets {
			pet.Available = true
			pet.Status = domain.PetStatusAvailable
			if _, err := c.pets.Save(pet); err != nil {
				return report, fmt.Errorf("save pet %s: %w", pet.Name, err)
			}
			report.Pets++
		}
	}

	slots, err := c.appointments.List()
	if err != nil {
		return report, fmt.Errorf("list appointments: %w", err)
	}
	if len(slots) == 0 {
		day := time.Date(opts.start.Year(), opts.start.Month(), opts.start.Day(), 0, 0, 0, 0, time.UTC)
		for d := 1; d <= opts.days; d++ {
			for _, hour := range slotHours {
				slot := domain.Appointment{ScheduledAt: day.AddDate(0, 0, d).Add(time.Duration(hour) * time.Hour)}
				if _, err := c.appointments.Save(slot); err != nil {
					return report, fmt.Errorf("save appointment slot: %w", err)
				}
				report.Appointments++
			}
		}
	}

	return report, nil
}
