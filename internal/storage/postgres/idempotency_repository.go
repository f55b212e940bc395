package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const idempotencyColumns = `key, operation, fingerprint, status, response, result_code, expires_at, created_at, updated_at`

// IdempotencyRepository хранит ключи идемпотентности в таблице idempotency_keys.
type IdempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewIdempotencyRepository создаёт репозиторий ключей поверх Store.
func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Claim вставляет ключ; при конфликте возвращает сохранённую запись.
func (r *IdempotencyRepository) Claim(claim domain.IdempotencyClaim) (domain.IdempotencyRecord, error) {
	now := r.now()
	claim, err := claim.Normalize(now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO idempotency_keys (key, operation, fingerprint, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (key) DO NOTHING
		RETURNING created_at
	`, claim.Key, claim.Operation, claim.Fingerprint, string(domain.IdempotencyStatusProcessing), claim.ExpiresAt, now).Scan(&createdAt)
	switch {
	case err == nil:
		return domain.IdempotencyRecord{
			IdempotencyClaim: claim,
			Status:           domain.IdempotencyStatusProcessing,
			CreatedAt:        createdAt,
			UpdatedAt:        createdAt,
		}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.IdempotencyRecord{}, fmt.Errorf("claim idempotency key %s: %w", claim.Key, err)
	}

	existing, err := r.Get(claim.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("load claimed idempotency key %s: %w", claim.Key, err)
	}
	if !existing.Matches(claim) {
		return existing, domain.ErrIdempotencyFingerprintMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		record domain.IdempotencyRecord
		status string
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE key = $1`, key).Scan(
		&record.Key,
		&record.Operation,
		&record.Fingerprint,
		&status,
		&record.Response,
		&record.Code,
		&record.ExpiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency key %s: %w", key, err)
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", key, status)
	}
	return record, nil
}

// Resolve записывает результат выполнения.
func (r *IdempotencyRepository) Resolve(key string, outcome domain.IdempotencyOutcome) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if !outcome.Status.Resolved() {
		return domain.ErrIdempotencyUnresolved
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response = $3, result_code = $4, updated_at = $5
		WHERE key = $1
	`, key, string(outcome.Status), outcome.Response, outcome.Code, r.now())
	if err != nil {
		return fmt.Errorf("resolve idempotency key %s: %w", key, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("resolve idempotency key %s: %w", key, err)
	} else if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

// DeleteExpired удаляет просроченные ключи, начиная с самых старых. NULL в LIMIT снимает ограничение.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}
	batch := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE key IN (
			SELECT key FROM idempotency_keys
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, before, batch)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return int(affected), nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
