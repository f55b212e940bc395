package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// IdempotencyRepository хранит ключи идемпотентности в памяти процесса.
type IdempotencyRepository struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]domain.IdempotencyRecord
}

// NewIdempotencyRepository создаёт пустое хранилище ключей.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		now:     func() time.Time { return time.Now().UTC() },
		records: make(map[string]domain.IdempotencyRecord),
	}
}

// Claim занимает ключ под операцию.
func (r *IdempotencyRepository) Claim(claim domain.IdempotencyClaim) (domain.IdempotencyRecord, error) {
	now := r.now()
	claim, err := claim.Normalize(now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[claim.Key]; ok {
		if !existing.Matches(claim) {
			return copyRecord(existing), domain.ErrIdempotencyFingerprintMismatch
		}
		return copyRecord(existing), domain.ErrIdempotencyKeyAlreadyExists
	}

	record := domain.IdempotencyRecord{
		IdempotencyClaim: claim,
		Status:           domain.IdempotencyStatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.records[claim.Key] = record
	return copyRecord(record), nil
}

func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(record), nil
}

// Resolve сохраняет результат выполнения.
func (r *IdempotencyRepository) Resolve(key string, outcome domain.IdempotencyOutcome) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if !outcome.Status.Resolved() {
		return domain.ErrIdempotencyUnresolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = outcome.Status
	record.Response = append([]byte(nil), outcome.Response...)
	record.Code = outcome.Code
	record.UpdatedAt = r.now()
	r.records[key] = record
	return nil
}

// DeleteExpired удаляет самые старые просроченные ключи первыми.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, record := range r.records {
		if record.Expired(before) {
			expired = append(expired, record)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, record := range expired {
		delete(r.records, record.Key)
	}
	return len(expired), nil
}

func copyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.Response = append([]byte(nil), src.Response...)
	return dst
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
