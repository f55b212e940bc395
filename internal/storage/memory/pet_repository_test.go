package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/storage/memory"
)

func TestPetRepository_AvailabilityQueries(t *testing.T) {
	repo := memory.NewPetRepository()

	for _, pet := range []domain.Pet{
		{ID: "p-1", Name: "Luna", Species: "Perro", Available: true},
		{ID: "p-2", Name: "Michi", Species: "Gato", Available: true},
		{ID: "p-3", Name: "Rocky", Species: "Perro", Available: false},
	} {
		if _, err := repo.Save(pet); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	available, err := repo.ListAvailable()
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("expected 2 available pets, got %d", len(available))
	}

	dogs, _ := repo.ListAvailableBySpecies("perro")
	if len(dogs) != 1 || dogs[0].ID != "p-1" {
		t.Fatalf("unexpected dogs: %+v", dogs)
	}

	all, _ := repo.ListAvailableBySpecies(domain.SpeciesAll)
	if len(all) != 2 {
		t.Fatalf("expected species filter 'all' to return every available pet, got %d", len(all))
	}

	rocky, _ := repo.Get("p-3")
	if rocky.Status != domain.PetStatusReserved {
		t.Fatalf("expected default status reserved for unavailable pet, got %s", rocky.Status)
	}
}

func TestPetRepository_SaveReplacesRecord(t *testing.T) {
	repo := memory.NewPetRepository()
	id, _ := repo.Save(domain.Pet{Name: "Luna", Species: "Perro", Available: true})

	pet, _ := repo.Get(id)
	pet.MarkAdopted()
	if _, err := repo.Save(pet); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, _ := repo.Get(id)
	if updated.Available || updated.Status != domain.PetStatusAdopted {
		t.Fatalf("unexpected pet after replace: %+v", updated)
	}
	if !updated.CreatedAt.Equal(pet.CreatedAt) {
		t.Fatal("created_at must survive replace")
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrPetNotFound) {
		t.Fatalf("expected ErrPetNotFound, got %v", err)
	}
}
