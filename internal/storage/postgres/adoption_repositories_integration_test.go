package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

func TestRequestRepository_PostgresVersioning(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewRequestRepository(store)

	id, err := repo.Save(domain.AdoptionRequest{
		RequesterID: "u1",
		PetID:       "P1",
		Status:      domain.RequestStatusPending,
		Reasons:     domain.AdoptionReasons{Motivation: "quiet flat", AcceptsFollowUp: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)
	require.Equal(t, "quiet flat", got.Reasons.Motivation)
	require.True(t, got.Reasons.AcceptsFollowUp)

	got.Status = domain.RequestStatusApproved
	_, err = repo.Save(got)
	require.NoError(t, err)

	stale := got
	stale.Status = domain.RequestStatusCancelled
	_, err = repo.Save(stale)
	require.True(t, errors.Is(err, domain.ErrRequestVersionConflict), "expected conflict, got %v", err)

	_, err = repo.Save(domain.AdoptionRequest{ID: "missing", Version: 3, RequesterID: "u1", Status: domain.RequestStatusPending})
	require.ErrorIs(t, err, domain.ErrRequestNotFound)

	_, err = repo.Get("missing")
	require.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestRequestRepository_PostgresListOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewRequestRepository(store)

	for _, r := range []domain.AdoptionRequest{
		{ID: "r-b", RequesterID: "u1", PetID: "P1", Status: domain.RequestStatusPending},
		{ID: "r-a", RequesterID: "u2", PetID: "P2", Status: domain.RequestStatusPending},
		{ID: "r-c", RequesterID: "u1", PetID: "P3", Status: domain.RequestStatusPending},
	} {
		_, err := repo.Save(r)
		require.NoError(t, err)
	}

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"r-b", "r-a", "r-c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := repo.ListByRequester("u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, "r-c", mine[1].ID)
}

func TestPetRepository_PostgresCatalogue(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPetRepository(store)

	for _, p := range []domain.Pet{
		{ID: "P1", Name: "Toby", Species: "Dog", Available: true},
		{ID: "P2", Name: "Mia", Species: "cat", Available: true},
		{ID: "P3", Name: "Rex", Species: "dog", Available: false, Status: domain.PetStatusAdopted},
	} {
		_, err := repo.Save(p)
		require.NoError(t, err)
	}

	dogs, err := repo.ListAvailableBySpecies("DOG")
	require.NoError(t, err)
	require.Len(t, dogs, 1)
	require.Equal(t, "P1", dogs[0].ID)

	all, err := repo.ListAvailableBySpecies("all")
	require.NoError(t, err)
	require.Len(t, all, 2)

	pet, err := repo.Get("P1")
	require.NoError(t, err)
	require.Equal(t, domain.PetStatusAvailable, pet.Status)
	createdAt := pet.CreatedAt

	pet.MarkReserved()
	_, err = repo.Save(pet)
	require.NoError(t, err)

	pet, err = repo.Get("P1")
	require.NoError(t, err)
	require.False(t, pet.Available)
	require.True(t, pet.CreatedAt.Equal(createdAt))

	_, err = repo.Get("ghost")
	require.ErrorIs(t, err, domain.ErrPetNotFound)
}

func TestAppointmentRepository_PostgresReserveSingleWinner(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewAppointmentRepository(store)

	_, err := repo.Save(domain.Appointment{ID: "A1", ScheduledAt: time.Now().UTC().Add(48 * time.Hour)})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve("A1", "u1", "P1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, domain.ErrReservationConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
	require.Equal(t, 7, conflicts)

	booked, err := repo.Get("A1")
	require.NoError(t, err)
	require.Equal(t, "u1", booked.RequesterID)
	require.Equal(t, "P1", booked.PetID)

	free, err := repo.ListFree()
	require.NoError(t, err)
	require.Empty(t, free)

	require.NoError(t, repo.Release("A1"))
	require.NoError(t, repo.Release("A1"))
	require.ErrorIs(t, repo.Release("missing"), domain.ErrAppointmentNotFound)
	require.ErrorIs(t, repo.Reserve("missing", "u1", "P1"), domain.ErrAppointmentNotFound)
}

func TestRequesterRepository_PostgresFindByEmail(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewRequesterRepository(store)

	id, err := repo.Save(domain.Requester{Name: "Ana", Email: "Ana@Example.com"})
	require.NoError(t, err)

	found, err := repo.FindByEmail("ana@example.com")
	require.NoError(t, err)
	require.Equal(t, id, found.ID)

	_, err = repo.FindByEmail("")
	require.ErrorIs(t, err, domain.ErrRequesterNotFound)

	_, err = repo.Save(domain.Requester{Name: "Other", Email: "ANA@example.com"})
	require.Error(t, err)
}
