package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/policy"
	"github.com/vladislavdragonenkov/shelter/internal/service/idempotency"
)

func TestToStatus_MapsDomainErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"blank id", fmt.Errorf("accept: %w", domain.ErrRequestIDRequired), codes.InvalidArgument},
		{"joined validation", errors.Join(domain.ErrRequesterRequired, domain.ErrPetRequired), codes.InvalidArgument},
		{"transition table", policy.TransitionError{Transition: domain.TransitionAccept, From: domain.RequestStatusRejected, To: domain.RequestStatusApproved}, codes.FailedPrecondition},
		{"custom rule", fmt.Errorf("%w: weekend", domain.ErrTransitionDenied), codes.FailedPrecondition},
		{"slot taken", domain.ErrReservationConflict, codes.FailedPrecondition},
		{"missing request", domain.ErrRequestNotFound, codes.NotFound},
		{"missing slot", fmt.Errorf("reserve: %w", domain.ErrAppointmentNotFound), codes.NotFound},
		{"stale write", domain.ErrRequestVersionConflict, codes.Aborted},
		{"lock timeout", fmt.Errorf("lock: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"storage", errors.New("connection reset"), codes.Internal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.Code(toStatus(tc.err)); got != tc.want {
				t.Fatalf("code = %v, want %v", got, tc.want)
			}
		})
	}

	if toStatus(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	existing := status.Error(codes.Unavailable, "down")
	if got := toStatus(existing); status.Code(got) != codes.Unavailable {
		t.Fatalf("status errors must pass through, got %v", got)
	}
}

func TestIdempotencyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"replayed failure", &idempotency.Failure{Code: int(codes.NotFound), Message: "adoption request not found"}, codes.NotFound},
		{"replayed ok code", &idempotency.Failure{Code: int(codes.OK)}, codes.Internal},
		{"out of range code", &idempotency.Failure{Code: 99}, codes.Internal},
		{"payload mismatch", domain.ErrIdempotencyFingerprintMismatch, codes.AlreadyExists},
		{"in progress", idempotency.ErrInProgress, codes.Aborted},
		{"blank key", domain.ErrIdempotencyKeyRequired, codes.InvalidArgument},
		{"handler status", status.Error(codes.FailedPrecondition, "taken"), codes.FailedPrecondition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.Code(idempotencyStatus(tc.err)); got != tc.want {
				t.Fatalf("code = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	code, msg := classifyStatus(domain.ErrRequestNotFound)
	if codes.Code(code) != codes.NotFound || msg != domain.ErrRequestNotFound.Error() {
		t.Fatalf("unexpected classification: %d %q", code, msg)
	}
}
