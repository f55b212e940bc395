package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewStore(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRequestRepository_InsertUsesFirstVersion(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	mock.ExpectExec("INSERT INTO adoption_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Save(domain.AdoptionRequest{
		RequesterID: "u1",
		PetID:       "P1",
		Status:      domain.RequestStatusPending,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	expectationsMet(t, mock)
}

func TestRequestRepository_InsertDuplicateIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	mock.ExpectExec("INSERT INTO adoption_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Save(domain.AdoptionRequest{ID: "r1", RequesterID: "u1", PetID: "P1", Status: domain.RequestStatusPending})
	if !errors.Is(err, domain.ErrRequestVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRequestRepository_UpdateStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	mock.ExpectExec("UPDATE adoption_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM adoption_requests").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))

	_, err := repo.Save(domain.AdoptionRequest{ID: "r1", Version: 1, RequesterID: "u1", PetID: "P1", Status: domain.RequestStatusApproved})
	if !errors.Is(err, domain.ErrRequestVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRequestRepository_UpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	mock.ExpectExec("UPDATE adoption_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM adoption_requests").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Save(domain.AdoptionRequest{ID: "ghost", Version: 2, RequesterID: "u1", PetID: "P1", Status: domain.RequestStatusApproved})
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRequestRepository_GetScansReasons(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM adoption_requests").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "requester_id", "pet_id", "appointment_id", "status", "correction_note",
			"motivation", "previous_pets", "accepts_follow_up", "housing_details",
			"version", "submitted_at", "updated_at",
		}).AddRow("r1", "u1", "P1", "A1", "requires_modification", "add references",
			"garden", "one cat", true, "house", int64(3), now, now))

	req, err := repo.Get("r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != domain.RequestStatusRequiresModification || req.CorrectionNote != "add references" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !req.Reasons.AcceptsFollowUp || req.Reasons.HousingDetails != "house" || req.Version != 3 {
		t.Fatalf("unexpected reasons: %+v", req)
	}
	expectationsMet(t, mock)
}

func TestRequestRepository_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequestRepository(store)

	mock.ExpectQuery("FROM adoption_requests").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get("ghost"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPetRepository_SpeciesFilter(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewPetRepository(store)

	now := time.Now().UTC()
	columns := []string{"id", "name", "species", "breed", "age_years", "available", "status", "created_at", "updated_at"}

	mock.ExpectQuery(`LOWER\(species\) = LOWER\(\$1\)`).
		WithArgs("dog").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("P1", "Toby", "Dog", "", int64(3), true, "available", now, now))
	mock.ExpectQuery("FROM pets WHERE available ORDER BY").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("P1", "Toby", "Dog", "", int64(3), true, "available", now, now).
			AddRow("P2", "Mia", "cat", "", int64(1), true, "available", now, now))

	dogs, err := repo.ListAvailableBySpecies(" dog ")
	if err != nil {
		t.Fatalf("list dogs: %v", err)
	}
	if len(dogs) != 1 || dogs[0].Name != "Toby" {
		t.Fatalf("unexpected dogs: %+v", dogs)
	}

	all, err := repo.ListAvailableBySpecies("ALL")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pets, got %d", len(all))
	}
	expectationsMet(t, mock)
}

func TestPetRepository_SaveDefaultsStatus(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewPetRepository(store)

	mock.ExpectExec("INSERT INTO pets").
		WithArgs("P9", "Rex", "dog", "", int32(0), false, "reserved", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.Save(domain.Pet{ID: "P9", Name: "Rex", Species: "dog"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAppointmentRepository_ReserveOutcomes(t *testing.T) {
	now := time.Now().UTC()
	columns := []string{"id", "requester_id", "pet_id", "scheduled_at", "booked", "updated_at"}

	tests := []struct {
		name    string
		prepare func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "free slot",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE appointments").
					WithArgs("A1", "u1", "P1", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already booked",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("FROM appointments WHERE id").
					WillReturnRows(sqlmock.NewRows(columns).AddRow("A1", "u2", "", now, true, now))
			},
			wantErr: domain.ErrReservationConflict,
		},
		{
			name: "unknown slot",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("FROM appointments WHERE id").WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrAppointmentNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			repo := NewAppointmentRepository(store)
			tc.prepare(mock)

			err := repo.Reserve("A1", "u1", "P1")
			if tc.wantErr == nil && err != nil {
				t.Fatalf("reserve: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestAppointmentRepository_ReleaseMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewAppointmentRepository(store)

	mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Release("ghost"); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRequesterRepository_FindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequesterRepository(store)

	if _, err := repo.FindByEmail("   "); !errors.Is(err, domain.ErrRequesterNotFound) {
		t.Fatalf("blank email must not hit the database: %v", err)
	}

	mock.ExpectQuery(`LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "is_admin", "created_at"}).
			AddRow("u1", "Ana", "Ana@Example.com", "", false, time.Now().UTC()))

	requester, err := repo.FindByEmail("ana@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if requester.ID != "u1" {
		t.Fatalf("unexpected requester: %+v", requester)
	}
	expectationsMet(t, mock)
}

func TestRequesterRepository_DuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRequesterRepository(store)

	mock.ExpectExec("INSERT INTO requesters").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Save(domain.Requester{Name: "Ana", Email: "ana@example.com"})
	if err == nil || !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestIdempotencyRepository_ClaimConflictLoadsExisting(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewIdempotencyRepository(store)
	now := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO idempotency_keys").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT key, operation, fingerprint").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{
			"key", "operation", "fingerprint", "status", "response", "result_code", "expires_at", "created_at", "updated_at",
		}).AddRow("k1", "accept", "fp-old", "completed", []byte(`{}`), 0, now.Add(time.Hour), now, now))

	existing, err := repo.Claim(domain.IdempotencyClaim{Key: "k1", Operation: "accept", Fingerprint: "fp-new"})
	if !errors.Is(err, domain.ErrIdempotencyFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
	if existing.Status != domain.IdempotencyStatusCompleted {
		t.Fatalf("expected stored record, got %+v", existing)
	}
	expectationsMet(t, mock)
}

func TestIdempotencyRepository_DeleteExpiredUnlimited(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewIdempotencyRepository(store)
	before := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM idempotency_keys").
		WithArgs(before, sql.NullInt64{}).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteExpired(before, 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	expectationsMet(t, mock)
}

func TestIdempotencyRepository_ResolveMissingKey(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewIdempotencyRepository(store)

	mock.ExpectExec("UPDATE idempotency_keys").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve("gone", domain.IdempotencyOutcome{Status: domain.IdempotencyStatusCompleted})
	if !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}
