package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

type requesterRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Requester
}

// NewRequesterRepository создаёт in-memory реализацию RequesterRepository.
func NewRequesterRepository() domain.RequesterRepository {
	return &requesterRepositoryInMemory{items: make(map[string]domain.Requester)}
}

func (r *requesterRepositoryInMemory) Get(id string) (domain.Requester, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requester, ok := r.items[id]
	if !ok {
		return domain.Requester{}, domain.ErrRequesterNotFound
	}
	return requester, nil
}

func (r *requesterRepositoryInMemory) Save(requester domain.Requester) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requester.ID == "" {
		requester.ID = uuid.NewString()
	}
	if requester.CreatedAt.IsZero() {
		requester.CreatedAt = time.Now().UTC()
	}
	r.items[requester.ID] = requester
	return requester.ID, nil
}

// FindByEmail ищет заявителя по адресу без учёта регистра.
func (r *requesterRepositoryInMemory) FindByEmail(email string) (domain.Requester, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Requester{}, domain.ErrRequesterNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, requester := range r.items {
		if strings.EqualFold(requester.Email, email) {
			return requester, nil
		}
	}
	return domain.Requester{}, domain.ErrRequesterNotFound
}

var _ domain.RequesterRepository = (*requesterRepositoryInMemory)(nil)
