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

const appointmentColumns = `id, requester_id, pet_id, scheduled_at, booked, updated_at`

type appointmentRepository struct {
	db *sql.DB
}

// NewAppointmentRepository создаёт PostgreSQL-реализацию AppointmentRepository.
func NewAppointmentRepository(store *Store) domain.AppointmentRepository {
	return &appointmentRepository{db: store.DB()}
}

func (r *appointmentRepository) Get(id string) (domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	appt, err := scanAppointment(r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, domain.ErrAppointmentNotFound
		}
		return domain.Appointment{}, fmt.Errorf("select appointment: %w", err)
	}
	return appt, nil
}

func (r *appointmentRepository) List() ([]domain.Appointment, error) {
	return r.query(`SELECT ` + appointmentColumns + ` FROM appointments ORDER BY scheduled_at ASC, id ASC`)
}

func (r *appointmentRepository) ListByRequester(requesterID string) ([]domain.Appointment, error) {
	return r.query(`
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1
		ORDER BY scheduled_at ASC, id ASC
	`, requesterID)
}

func (r *appointmentRepository) ListFree() ([]domain.Appointment, error) {
	return r.query(`SELECT ` + appointmentColumns + ` FROM appointments WHERE NOT booked ORDER BY scheduled_at ASC, id ASC`)
}

func (r *appointmentRepository) Save(appt domain.Appointment) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (id, requester_id, pet_id, scheduled_at, booked, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET requester_id = EXCLUDED.requester_id,
		    pet_id = EXCLUDED.pet_id,
		    scheduled_at = EXCLUDED.scheduled_at,
		    booked = EXCLUDED.booked,
		    updated_at = EXCLUDED.updated_at
	`, appt.ID, appt.RequesterID, appt.PetID, appt.ScheduledAt, appt.Booked, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("upsert appointment: %w", err)
	}
	return appt.ID, nil
}

// Reserve атомарно бронирует свободный слот; занятый слот даёт ErrReservationConflict.
func (r *appointmentRepository) Reserve(id, requesterID, petID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET booked = TRUE,
		    requester_id = $2,
		    pet_id = $3,
		    updated_at = $4
		WHERE id = $1
		  AND NOT booked
	`, id, requesterID, petID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve appointment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.Get(id); err != nil {
			return err
		}
		return domain.ErrReservationConflict
	}
	return nil
}

// Release освобождает слот; повторный вызов не считается ошибкой.
func (r *appointmentRepository) Release(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET booked = FALSE,
		    updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("release appointment: %w", err)
	}
	return expectOneRow(res, domain.ErrAppointmentNotFound)
}

func (r *appointmentRepository) query(query string, args ...any) ([]domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		result = append(result, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return result, nil
}

func scanAppointment(row rowScanner) (domain.Appointment, error) {
	var appt domain.Appointment
	if err := row.Scan(&appt.ID, &appt.RequesterID, &appt.PetID, &appt.ScheduledAt, &appt.Booked, &appt.UpdatedAt); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

var _ domain.AppointmentRepository = (*appointmentRepository)(nil)
