package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// toStatus сопоставляет доменные ошибки с кодами gRPC.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTransitionDenied),
		errors.Is(err, domain.ErrReservationConflict):
		return codes.FailedPrecondition
	case domain.IsValidation(err):
		return codes.InvalidArgument
	case domain.IsNotFound(err):
		return codes.NotFound
	case domain.IsVersionConflict(err):
		return codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
