package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const requestColumns = `id, requester_id, pet_id, appointment_id, status, correction_note,
	motivation, previous_pets, accepts_follow_up, housing_details,
	version, submitted_at, updated_at`

type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository создаёт PostgreSQL-реализацию RequestRepository.
func NewRequestRepository(store *Store) domain.RequestRepository {
	return &requestRepository{db: store.DB()}
}

func (r *requestRepository) Get(id string) (domain.AdoptionRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM adoption_requests
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AdoptionRequest{}, domain.ErrRequestNotFound
		}
		return domain.AdoptionRequest{}, fmt.Errorf("select adoption request: %w", err)
	}
	return req, nil
}

// List возвращает заявки в порядке подачи.
func (r *requestRepository) List() ([]domain.AdoptionRequest, error) {
	return r.query(`
		SELECT `+requestColumns+`
		FROM adoption_requests
		ORDER BY seq ASC
	`)
}

func (r *requestRepository) ListByRequester(requesterID string) ([]domain.AdoptionRequest, error) {
	return r.query(`
		SELECT `+requestColumns+`
		FROM adoption_requests
		WHERE requester_id = $1
		ORDER BY seq ASC
	`, requesterID)
}

// Save вставляет заявку с Version=0 или обновляет существующую с проверкой версии.
func (r *requestRepository) Save(req domain.AdoptionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = now
	}

	if req.Version == 0 {
		if req.SubmittedAt.IsZero() {
			req.SubmittedAt = now
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO adoption_requests (
				id, requester_id, pet_id, appointment_id, status, correction_note,
				motivation, previous_pets, accepts_follow_up, housing_details,
				version, submitted_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,$11,$12)
			ON CONFLICT (id) DO NOTHING
		`,
			req.ID, req.RequesterID, req.PetID, req.AppointmentID, string(req.Status), req.CorrectionNote,
			req.Reasons.Motivation, req.Reasons.PreviousPets, req.Reasons.AcceptsFollowUp, req.Reasons.HousingDetails,
			req.SubmittedAt, req.UpdatedAt,
		)
		if err != nil {
			return "", fmt.Errorf("insert adoption request: %w", err)
		}
		if err := expectOneRow(res, domain.ErrRequestVersionConflict); err != nil {
			return "", err
		}
		return req.ID, nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE adoption_requests
		SET requester_id = $1,
		    pet_id = $2,
		    appointment_id = $3,
		    status = $4,
		    correction_note = $5,
		    motivation = $6,
		    previous_pets = $7,
		    accepts_follow_up = $8,
		    housing_details = $9,
		    version = version + 1,
		    updated_at = $10
		WHERE id = $11
		  AND version = $12
	`,
		req.RequesterID, req.PetID, req.AppointmentID, string(req.Status), req.CorrectionNote,
		req.Reasons.Motivation, req.Reasons.PreviousPets, req.Reasons.AcceptsFollowUp, req.Reasons.HousingDetails,
		req.UpdatedAt, req.ID, req.Version,
	)
	if err != nil {
		return "", fmt.Errorf("update adoption request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, req.ID)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", domain.ErrRequestNotFound
		}
		return "", domain.ErrRequestVersionConflict
	}
	return req.ID, nil
}

func (r *requestRepository) query(query string, args ...any) ([]domain.AdoptionRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list adoption requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AdoptionRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adoption request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adoption requests: %w", err)
	}
	return result, nil
}

func (r *requestRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM adoption_requests WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check adoption request exists: %w", err)
}

func scanRequest(row rowScanner) (domain.AdoptionRequest, error) {
	var (
		req    domain.AdoptionRequest
		status string
	)
	if err := row.Scan(
		&req.ID, &req.RequesterID, &req.PetID, &req.AppointmentID, &status, &req.CorrectionNote,
		&req.Reasons.Motivation, &req.Reasons.PreviousPets, &req.Reasons.AcceptsFollowUp, &req.Reasons.HousingDetails,
		&req.Version, &req.SubmittedAt, &req.UpdatedAt,
	); err != nil {
		return domain.AdoptionRequest{}, err
	}
	req.Status = domain.RequestStatus(status)
	return req, nil
}

// expectOneRow возвращает errNone, если запрос не затронул ни одной строки.
func expectOneRow(res sql.Result, errNone error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return errNone
	}
	return nil
}

var _ domain.RequestRepository = (*requestRepository)(nil)
