package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const petColumns = `id, name, species, breed, age_years, available, status, created_at, updated_at`

type petRepository struct {
	db *sql.DB
}

// NewPetRepository создаёт PostgreSQL-реализацию PetRepository.
func NewPetRepository(store *Store) domain.PetRepository {
	return &petRepository{db: store.DB()}
}

func (r *petRepository) Get(id string) (domain.Pet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pet, err := scanPet(r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Pet{}, domain.ErrPetNotFound
		}
		return domain.Pet{}, fmt.Errorf("select pet: %w", err)
	}
	return pet, nil
}

func (r *petRepository) List() ([]domain.Pet, error) {
	return r.query(`SELECT ` + petColumns + ` FROM pets ORDER BY created_at ASC, id ASC`)
}

func (r *petRepository) ListAvailable() ([]domain.Pet, error) {
	return r.query(`SELECT ` + petColumns + ` FROM pets WHERE available ORDER BY created_at ASC, id ASC`)
}

// ListAvailableBySpecies сравнивает вид без учёта регистра; пустой фильтр и "all" возвращают всех.
func (r *petRepository) ListAvailableBySpecies(species string) ([]domain.Pet, error) {
	species = strings.TrimSpace(species)
	if species == "" || strings.EqualFold(species, domain.SpeciesAll) {
		return r.ListAvailable()
	}
	return r.query(`
		SELECT `+petColumns+`
		FROM pets
		WHERE available AND LOWER(species) = LOWER($1)
		ORDER BY created_at ASC, id ASC
	`, species)
}

// Save создаёт питомца или заменяет изменяемые поля, сохраняя created_at.
func (r *petRepository) Save(pet domain.Pet) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if pet.ID == "" {
		pet.ID = uuid.NewString()
	}
	if pet.CreatedAt.IsZero() {
		pet.CreatedAt = now
	}
	if pet.Status == "" {
		pet.Status = domain.PetStatusAvailable
		if !pet.Available {
			pet.Status = domain.PetStatusReserved
		}
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO pets (id, name, species, breed, age_years, available, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    species = EXCLUDED.species,
		    breed = EXCLUDED.breed,
		    age_years = EXCLUDED.age_years,
		    available = EXCLUDED.available,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
	`,
		pet.ID, pet.Name, pet.Species, pet.Breed, pet.AgeYears, pet.Available, string(pet.Status), pet.CreatedAt, now,
	); err != nil {
		return "", fmt.Errorf("upsert pet: %w", err)
	}
	return pet.ID, nil
}

func (r *petRepository) query(query string, args ...any) ([]domain.Pet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	pets := make([]domain.Pet, 0)
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}
	return pets, nil
}

func scanPet(row rowScanner) (domain.Pet, error) {
	var (
		pet    domain.Pet
		status string
	)
	if err := row.Scan(&pet.ID, &pet.Name, &pet.Species, &pet.Breed, &pet.AgeYears, &pet.Available, &status, &pet.CreatedAt, &pet.UpdatedAt); err != nil {
		return domain.Pet{}, err
	}
	pet.Status = domain.PetStatus(status)
	return pet, nil
}

var _ domain.PetRepository = (*petRepository)(nil)
