package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// petRepositoryInMemory — каталог питомцев в памяти.
type petRepositoryInMemory struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.Pet
}

// NewPetRepository создаёт in-memory реализацию PetRepository.
func NewPetRepository() domain.PetRepository {
	return &petRepositoryInMemory{items: make(map[string]domain.Pet)}
}

func (r *petRepositoryInMemory) Get(id string) (domain.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pet, ok := r.items[id]
	if !ok {
		return domain.Pet{}, domain.ErrPetNotFound
	}
	return pet, nil
}

func (r *petRepositoryInMemory) List() ([]domain.Pet, error) {
	return r.filter(func(domain.Pet) bool { return true }), nil
}

func (r *petRepositoryInMemory) ListAvailable() ([]domain.Pet, error) {
	return r.filter(func(p domain.Pet) bool { return p.Available }), nil
}

func (r *petRepositoryInMemory) ListAvailableBySpecies(species string) ([]domain.Pet, error) {
	return r.filter(func(p domain.Pet) bool { return p.Available && p.MatchesSpecies(species) }), nil
}

// Save создаёт или полностью заменяет запись.
func (r *petRepositoryInMemory) Save(pet domain.Pet) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if pet.ID == "" {
		pet.ID = uuid.NewString()
	}
	current, exists := r.items[pet.ID]
	if !exists {
		r.order = append(r.order, pet.ID)
		if pet.CreatedAt.IsZero() {
			pet.CreatedAt = now
		}
	} else {
		pet.CreatedAt = current.CreatedAt
	}
	if pet.Status == "" {
		pet.Status = domain.PetStatusAvailable
		if !pet.Available {
			pet.Status = domain.PetStatusReserved
		}
	}
	pet.UpdatedAt = now
	r.items[pet.ID] = pet
	return pet.ID, nil
}

func (r *petRepositoryInMemory) filter(keep func(domain.Pet) bool) []domain.Pet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Pet, 0, len(r.order))
	for _, id := range r.order {
		if pet := r.items[id]; keep(pet) {
			result = append(result, pet)
		}
	}
	return result
}

var _ domain.PetRepository = (*petRepositoryInMemory)(nil)
