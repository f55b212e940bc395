package domain

import (
	"errors"
	"testing"
	"time"
)

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		status   IdempotencyStatus
		valid    bool
		resolved bool
	}{
		{status: IdempotencyStatusProcessing, valid: true},
		{status: IdempotencyStatusCompleted, valid: true, resolved: true},
		{status: IdempotencyStatusFailed, valid: true, resolved: true},
		{status: IdempotencyStatus("broken")},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.valid {
				t.Fatalf("Valid() = %v, want %v", got, tc.valid)
			}
			if got := tc.status.Resolved(); got != tc.resolved {
				t.Fatalf("Resolved() = %v, want %v", got, tc.resolved)
			}
		})
	}
}

func TestIdempotencyClaim_Normalize(t *testing.T) {
	now := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)

	claim, err := IdempotencyClaim{Key: " k1 ", Operation: " /shelter.v1.AdoptionService/Accept ", Fingerprint: "fp"}.Normalize(now)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if claim.Key != "k1" || claim.Operation != "/shelter.v1.AdoptionService/Accept" {
		t.Fatalf("claim not trimmed: %+v", claim)
	}
	if !claim.ExpiresAt.Equal(now.Add(DefaultIdempotencyTTL)) {
		t.Fatalf("unexpected default expiry %s", claim.ExpiresAt)
	}

	if _, err := (IdempotencyClaim{Fingerprint: "fp"}).Normalize(now); !errors.Is(err, ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}
	if _, err := (IdempotencyClaim{Key: "k1", Fingerprint: "  "}).Normalize(now); !errors.Is(err, ErrIdempotencyFingerprintRequired) {
		t.Fatalf("expected fingerprint required, got %v", err)
	}
}

func TestIdempotencyRecord_MatchesAndExpired(t *testing.T) {
	now := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)
	record := IdempotencyRecord{IdempotencyClaim: IdempotencyClaim{
		Key:         "k1",
		Operation:   "accept",
		Fingerprint: "fp-1",
		ExpiresAt:   now,
	}}

	if !record.Matches(IdempotencyClaim{Operation: "accept", Fingerprint: "fp-1"}) {
		t.Fatal("same operation and fingerprint must match")
	}
	if record.Matches(IdempotencyClaim{Operation: "reject", Fingerprint: "fp-1"}) {
		t.Fatal("different operation must not match")
	}
	if !record.Expired(now) {
		t.Fatal("record expiring at now must be expired")
	}
	if record.Expired(now.Add(-time.Second)) {
		t.Fatal("record must be alive before its expiry")
	}
}
