package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// requestRepositoryInMemory — in-memory реализация RequestRepository.
// Порядок List совпадает с порядком создания заявок.
type requestRepositoryInMemory struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.AdoptionRequest
}

// NewRequestRepository возвращает in-memory репозиторий заявок для локальной разработки и тестов.
func NewRequestRepository() domain.RequestRepository {
	return &requestRepositoryInMemory{
		items: make(map[string]domain.AdoptionRequest),
	}
}

// Get возвращает заявку или ErrRequestNotFound.
func (r *requestRepositoryInMemory) Get(id string) (domain.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.items[id]
	if !ok {
		return domain.AdoptionRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (r *requestRepositoryInMemory) List() ([]domain.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.AdoptionRequest, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.items[id])
	}
	return result, nil
}

func (r *requestRepositoryInMemory) ListByRequester(requesterID string) ([]domain.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.AdoptionRequest, 0)
	for _, id := range r.order {
		if req := r.items[id]; req.RequesterID == requesterID {
			result = append(result, req)
		}
	}
	return result, nil
}

// Save вставляет новую заявку или заменяет существующую, проверяя версию (optimistic locking).
func (r *requestRepositoryInMemory) Save(req domain.AdoptionRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	current, exists := r.items[req.ID]
	if !exists {
		if req.SubmittedAt.IsZero() {
			req.SubmittedAt = now
		}
		req.Version = 1
		req.UpdatedAt = now
		r.items[req.ID] = req
		r.order = append(r.order, req.ID)
		return req.ID, nil
	}

	if current.Version != req.Version {
		return "", domain.ErrRequestVersionConflict
	}
	// Дата подачи фиксируется один раз.
	req.SubmittedAt = current.SubmittedAt
	req.Version++
	req.UpdatedAt = now
	r.items[req.ID] = req
	return req.ID, nil
}

var _ domain.RequestRepository = (*requestRepositoryInMemory)(nil)
