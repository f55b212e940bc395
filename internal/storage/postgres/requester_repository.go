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

const requesterColumns = `id, name, email, phone, is_admin, created_at`

type requesterRepository struct {
	db *sql.DB
}

// NewRequesterRepository создаёт PostgreSQL-реализацию RequesterRepository.
func NewRequesterRepository(store *Store) domain.RequesterRepository {
	return &requesterRepository{db: store.DB()}
}

func (r *requesterRepository) Get(id string) (domain.Requester, error) {
	return r.one(`SELECT `+requesterColumns+` FROM requesters WHERE id = $1`, id)
}

// FindByEmail ищет заявителя по адресу без учёта регистра.
func (r *requesterRepository) FindByEmail(email string) (domain.Requester, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Requester{}, domain.ErrRequesterNotFound
	}
	return r.one(`SELECT `+requesterColumns+` FROM requesters WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *requesterRepository) Save(requester domain.Requester) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if requester.ID == "" {
		requester.ID = uuid.NewString()
	}
	if requester.CreatedAt.IsZero() {
		requester.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO requesters (id, name, email, phone, is_admin, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    is_admin = EXCLUDED.is_admin
	`, requester.ID, requester.Name, requester.Email, requester.Phone, requester.Admin, requester.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("requester email %q already registered: %w", requester.Email, err)
		}
		return "", fmt.Errorf("upsert requester: %w", err)
	}
	return requester.ID, nil
}

func (r *requesterRepository) one(query string, arg string) (domain.Requester, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var requester domain.Requester
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&requester.ID, &requester.Name, &requester.Email, &requester.Phone, &requester.Admin, &requester.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Requester{}, domain.ErrRequesterNotFound
		}
		return domain.Requester{}, fmt.Errorf("select requester: %w", err)
	}
	return requester, nil
}

var _ domain.RequesterRepository = (*requesterRepository)(nil)
