package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/storage/memory"
)

func seedAppointments(t *testing.T) domain.AppointmentRepository {
	t.Helper()
	repo := memory.NewAppointmentRepository()
	for _, a := range []domain.Appointment{
		{ID: "A1", RequesterID: "u1", PetID: "P1", ScheduledAt: visitAt, Booked: true},
		{ID: "A2", RequesterID: "u1", PetID: "P2", ScheduledAt: visitAt.Add(24 * time.Hour), Booked: true},
		{ID: "A3", RequesterID: "u2", PetID: "P2", ScheduledAt: visitAt.Add(-time.Hour), Booked: true},
	} {
		if _, err := repo.Save(a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return repo
}

func TestResolveAppointment(t *testing.T) {
	repo := seedAppointments(t)

	tests := []struct {
		name    string
		req     domain.AdoptionRequest
		wantID  string
		found   bool
		wantErr error
	}{
		{name: "direct id", req: domain.AdoptionRequest{AppointmentID: "A2", RequesterID: "u1", PetID: "P1"}, wantID: "A2", found: true},
		{name: "fallback by requester and pet", req: domain.AdoptionRequest{RequesterID: "u1", PetID: "P2"}, wantID: "A2", found: true},
		{name: "fallback ignores other requesters", req: domain.AdoptionRequest{RequesterID: "u2", PetID: "P1"}},
		{name: "stale id falls back to requester and pet", req: domain.AdoptionRequest{AppointmentID: "gone", RequesterID: "u1", PetID: "P1"}, wantID: "A1", found: true},
		{name: "stale id without match", req: domain.AdoptionRequest{AppointmentID: "gone", RequesterID: "u2", PetID: "P1"}, wantErr: domain.ErrAppointmentNotFound},
		{name: "stale id without pet", req: domain.AdoptionRequest{AppointmentID: "gone", RequesterID: "u1"}, wantErr: domain.ErrAppointmentNotFound},
		{name: "missing pet", req: domain.AdoptionRequest{RequesterID: "u1"}},
		{name: "missing requester", req: domain.AdoptionRequest{PetID: "P1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			appt, found, err := ResolveAppointment(repo, tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != tc.found || appt.ID != tc.wantID {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tc.wantID, tc.found, appt.ID, found)
			}
		})
	}
}

func TestResolveAppointment_NilRepository(t *testing.T) {
	_, found, err := ResolveAppointment(nil, domain.AdoptionRequest{AppointmentID: "A1"})
	if err != nil || found {
		t.Fatalf("expected nothing, got found=%v err=%v", found, err)
	}
}

type brokenAppointments struct {
	domain.AppointmentRepository
	listed bool
}

func (b *brokenAppointments) Get(string) (domain.Appointment, error) {
	return domain.Appointment{}, errors.New("connection reset")
}

func (b *brokenAppointments) ListByRequester(string) ([]domain.Appointment, error) {
	b.listed = true
	return nil, nil
}

func TestResolveAppointment_StoreFailureSkipsFallback(t *testing.T) {
	repo := &brokenAppointments{AppointmentRepository: memory.NewAppointmentRepository()}

	_, found, err := ResolveAppointment(repo, domain.AdoptionRequest{AppointmentID: "A1", RequesterID: "u1", PetID: "P1"})
	if err == nil || found {
		t.Fatalf("expected load error, got found=%v err=%v", found, err)
	}
	if domain.IsNotFound(err) {
		t.Fatalf("store failure must not look like not found: %v", err)
	}
	if repo.listed {
		t.Fatal("fallback must run only when the slot is missing")
	}
}
