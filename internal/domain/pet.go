package domain

import (
	"strings"
	"time"
)

// PetStatus — человекочитаемая метка состояния питомца в каталоге.
type PetStatus string

const (
	PetStatusAvailable PetStatus = "available"
	PetStatusReserved  PetStatus = "reserved"
	PetStatusAdopted   PetStatus = "adopted"
	// PetStatusRemoved — питомец снят с каталога (мягкое удаление).
	PetStatusRemoved PetStatus = "removed"
)

// SpeciesAll — фильтр по виду, совпадающий с любым видом.
const SpeciesAll = "all"

// Pet описывает животное из каталога приюта.
type Pet struct {
	ID        string
	Name      string
	Species   string
	Breed     string
	AgeYears  int32
	Available bool
	Status    PetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkReserved снимает питомца с выдачи на время рассмотрения заявки.
func (p *Pet) MarkReserved() {
	p.Available = false
	p.Status = PetStatusReserved
}

// MarkAdopted фиксирует усыновление.
func (p *Pet) MarkAdopted() {
	p.Available = false
	p.Status = PetStatusAdopted
}

// MarkAvailable возвращает питомца в каталог.
func (p *Pet) MarkAvailable() {
	p.Available = true
	p.Status = PetStatusAvailable
}

// MatchesSpecies сравнивает вид без учёта регистра; пустой фильтр и SpeciesAll совпадают с любым.
func (p *Pet) MatchesSpecies(species string) bool {
	species = strings.TrimSpace(species)
	if species == "" || strings.EqualFold(species, SpeciesAll) {
		return true
	}
	return strings.EqualFold(p.Species, species)
}
