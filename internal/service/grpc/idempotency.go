package grpcsvc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/service/idempotency"
)

// IdempotencyKeyHeader — metadata-ключ, под которым клиент передаёт idempotency-key.
const IdempotencyKeyHeader = "idempotency-key"

// classifyStatus сохраняет код и сообщение gRPC-статуса для повторов.
func classifyStatus(err error) (int, string) {
	st := status.Convert(toStatus(err))
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}
	return int(code), st.Message()
}

// withIdempotency выполняет мутирующий вызов один раз на idempotency-key.
func (s *AdoptionService) withIdempotency(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	handler func(context.Context) (*structpb.Struct, error),
) (*structpb.Struct, error) {
	if !s.guard.Enabled() {
		return handler(ctx)
	}

	key, err := readIdempotencyKey(ctx)
	if err != nil {
		return nil, err
	}

	body, err := proto.MarshalOptions{Deterministic: true}.Marshal(in)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency fingerprint")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	cached, err := s.guard.Do(key, method, body, func() ([]byte, error) {
		resp, err := handler(ctx)
		if err != nil {
			return nil, err
		}
		return protojson.Marshal(resp)
	})
	if err != nil {
		return nil, idempotencyStatus(err)
	}

	resp := new(structpb.Struct)
	if err := protojson.Unmarshal(cached, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to decode cached response")
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return resp, nil
}

func idempotencyStatus(err error) error {
	var failure *idempotency.Failure
	switch {
	case errors.As(err, &failure):
		code := codes.Code(uint32(failure.Code)) //nolint:gosec // код записан из codes.Code
		if code == codes.OK || code > codes.Unauthenticated {
			code = codes.Internal
		}
		return status.Error(code, failure.Error())
	case errors.Is(err, domain.ErrIdempotencyFingerprintMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
	case errors.Is(err, idempotency.ErrCorruptRecord):
		return status.Error(codes.Internal, err.Error())
	default:
		return toStatus(err)
	}
}

func readIdempotencyKey(ctx context.Context) (string, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(IdempotencyKeyHeader); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), nil
		}
	}
	return "", status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
}
