package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/notification"
	grpcsvc "github.com/vladislavdragonenkov/shelter/internal/service/grpc"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/shelter/internal/service/query"
	"github.com/vladislavdragonenkov/shelter/internal/storage/memory"
)

const bufSize = 1024 * 1024

func idemCtx(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), grpcsvc.IdempotencyKeyHeader, key)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	return logger.WithField("component", "test")
}

type AdoptionServiceSuite struct {
	suite.Suite

	pets         domain.PetRepository
	appointments domain.AppointmentRepository
	gateway      *notification.MemoryGateway
	client       *grpcsvc.AdoptionServiceClient
	cleanup      func()
}

func TestAdoptionServiceSuite(t *testing.T) {
	suite.Run(t, new(AdoptionServiceSuite))
}

func (s *AdoptionServiceSuite) SetupTest() {
	logger := loggerForTests()

	requests := memory.NewRequestRepository()
	requesters := memory.NewRequesterRepository()
	timeline := memory.NewTimelineRepository()
	s.pets = memory.NewPetRepository()
	s.appointments = memory.NewAppointmentRepository()
	s.gateway = notification.NewMemoryGateway(logger)

	visit := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	for _, save := range []func() (string, error){
		func() (string, error) {
			return requesters.Save(domain.Requester{ID: "u1", Name: "Ana Ruiz", Email: "ana@example.com"})
		},
		func() (string, error) {
			return s.pets.Save(domain.Pet{ID: "P1", Name: "Toby", Species: "dog", Available: true, Status: domain.PetStatusAvailable})
		},
		func() (string, error) {
			return s.pets.Save(domain.Pet{ID: "P2", Name: "Mia", Species: "cat", Available: true, Status: domain.PetStatusAvailable})
		},
		func() (string, error) { return s.appointments.Save(domain.Appointment{ID: "A1", ScheduledAt: visit}) },
		func() (string, error) {
			return s.appointments.Save(domain.Appointment{ID: "A2", ScheduledAt: visit.Add(time.Hour)})
		},
	} {
		_, err := save()
		s.Require().NoError(err)
	}

	manager := lifecycle.NewManager(lifecycle.Dependencies{
		Requests:     requests,
		Pets:         s.pets,
		Appointments: s.appointments,
		Requesters:   requesters,
		Notifier:     s.gateway,
		Outbox:       memory.NewOutboxRepository(),
		Timeline:     timeline,
	}, lifecycle.WithLogger(logger))
	queries := query.NewService(query.Dependencies{
		Requests:     requests,
		Pets:         s.pets,
		Appointments: s.appointments,
		Requesters:   requesters,
		Timeline:     timeline,
	}, logger)

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	grpcsvc.RegisterAdoptionServiceServer(server, grpcsvc.NewAdoptionService(manager, queries, memory.NewIdempotencyRepository(), logger))
	go func() {
		_ = server.Serve(listener)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)

	s.client = grpcsvc.NewAdoptionServiceClient(conn)
	s.cleanup = func() {
		_ = conn.Close()
		server.Stop()
	}
}

func (s *AdoptionServiceSuite) TearDownTest() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (s *AdoptionServiceSuite) submit(key, petID, appointmentID string) string {
	resp, err := s.client.Call(idemCtx(key), grpcsvc.MethodSubmit, map[string]any{
		"requester_id":   "u1",
		"pet_id":         petID,
		"appointment_id": appointmentID,
		"reasons": map[string]any{
			"motivation":        "a quiet home with a garden",
			"accepts_follow_up": true,
		},
	})
	s.Require().NoError(err)
	request := resp.GetFields()["request"].GetStructValue()
	s.Require().Equal("pending", request.GetFields()["status"].GetStringValue())
	return request.GetFields()["request_id"].GetStringValue()
}

func statusOf(resp *structpb.Struct) string {
	return resp.GetFields()["request"].GetStructValue().GetFields()["status"].GetStringValue()
}

func (s *AdoptionServiceSuite) TestSubmitAndAccept() {
	id := s.submit("submit-1", "P1", "A1")

	appt, err := s.appointments.Get("A1")
	s.Require().NoError(err)
	s.True(appt.Booked)

	resp, err := s.client.Call(idemCtx("accept-1"), grpcsvc.MethodAccept, map[string]any{"request_id": id, "actor_id": "admin"})
	s.Require().NoError(err)
	s.Equal("approved", statusOf(resp))
	s.False(resp.GetFields()["already_applied"].GetBoolValue())

	pet, err := s.pets.Get("P1")
	s.Require().NoError(err)
	s.Equal(domain.PetStatusAdopted, pet.Status)

	sent := s.gateway.Sent()
	s.Require().Len(sent, 2)
	s.Contains(sent[1].Body, "Toby")
}

func (s *AdoptionServiceSuite) TestIdempotentReplay() {
	first := s.submit("submit-2", "P1", "A1")
	second := s.submit("submit-2", "P1", "A1")
	s.Equal(first, second)

	_, err := s.client.Call(idemCtx("submit-2"), grpcsvc.MethodSubmit, map[string]any{
		"requester_id": "u1",
		"pet_id":       "P2",
	})
	s.Equal(codes.AlreadyExists, status.Code(err))
}

func (s *AdoptionServiceSuite) TestFailureIsReplayed() {
	_, err := s.client.Call(idemCtx("accept-missing"), grpcsvc.MethodAccept, map[string]any{"request_id": "ghost"})
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.Call(idemCtx("accept-missing"), grpcsvc.MethodAccept, map[string]any{"request_id": "ghost"})
	s.Equal(codes.NotFound, status.Code(err))
}

func (s *AdoptionServiceSuite) TestIdempotencyKeyRequired() {
	_, err := s.client.Call(context.Background(), grpcsvc.MethodCancel, map[string]any{"request_id": "r1"})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *AdoptionServiceSuite) TestErrorCodes() {
	id := s.submit("submit-3", "P1", "A1")

	_, err := s.client.Call(idemCtx("reject-3"), grpcsvc.MethodReject, map[string]any{"request_id": id})
	s.Require().NoError(err)

	tests := []struct {
		name   string
		key    string
		method string
		fields map[string]any
		code   codes.Code
	}{
		{"blank id", "k-blank", grpcsvc.MethodAccept, map[string]any{"request_id": "  "}, codes.InvalidArgument},
		{"terminal state", "k-terminal", grpcsvc.MethodAccept, map[string]any{"request_id": id}, codes.FailedPrecondition},
		{"missing note", "k-note", grpcsvc.MethodRequestModification, map[string]any{"request_id": id}, codes.InvalidArgument},
		{"taken slot", "k-slot", grpcsvc.MethodSubmit, map[string]any{"requester_id": "u1", "pet_id": "P2", "appointment_id": "A1"}, codes.FailedPrecondition},
		{"unknown slot", "k-unknown", grpcsvc.MethodSubmit, map[string]any{"requester_id": "u1", "pet_id": "P2", "appointment_id": "A9"}, codes.NotFound},
		{"missing pet", "k-pet", grpcsvc.MethodSubmit, map[string]any{"requester_id": "u1"}, codes.InvalidArgument},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			_, err := s.client.Call(idemCtx(tc.key), tc.method, tc.fields)
			s.Equal(tc.code, status.Code(err), "error: %v", err)
		})
	}
}

func (s *AdoptionServiceSuite) TestRepeatedCancelIsAlreadyApplied() {
	id := s.submit("submit-4", "P1", "A1")

	_, err := s.client.Call(idemCtx("cancel-4a"), grpcsvc.MethodCancel, map[string]any{"request_id": id})
	s.Require().NoError(err)

	resp, err := s.client.Call(idemCtx("cancel-4b"), grpcsvc.MethodCancel, map[string]any{"request_id": id})
	s.Require().NoError(err)
	s.True(resp.GetFields()["already_applied"].GetBoolValue())
	s.Equal("cancelled", statusOf(resp))
}

func (s *AdoptionServiceSuite) TestModificationAndGetRequest() {
	id := s.submit("submit-5", "P1", "A1")

	resp, err := s.client.Call(idemCtx("modify-5"), grpcsvc.MethodRequestModification, map[string]any{
		"request_id": id,
		"actor_id":   "admin",
		"note":       "please attach proof of address",
	})
	s.Require().NoError(err)
	s.Equal("requires_modification", statusOf(resp))

	view, err := s.client.Call(context.Background(), grpcsvc.MethodGetRequest, map[string]any{"request_id": id})
	s.Require().NoError(err)
	fields := view.GetFields()
	s.Equal("please attach proof of address", fields["request"].GetStructValue().GetFields()["correction_note"].GetStringValue())
	s.Equal("Toby", fields["pet"].GetStructValue().GetFields()["name"].GetStringValue())
	s.Equal("A1", fields["appointment_id"].GetStringValue())
	s.Len(fields["timeline"].GetListValue().GetValues(), 2)
}

func (s *AdoptionServiceSuite) TestListRequestsAndCatalogue() {
	s.submit("submit-6", "P1", "A1")

	list, err := s.client.Call(context.Background(), grpcsvc.MethodListRequests, map[string]any{"requester_id": "u1"})
	s.Require().NoError(err)
	s.Len(list.GetFields()["requests"].GetListValue().GetValues(), 1)

	pets, err := s.client.Call(context.Background(), grpcsvc.MethodListAvailablePets, map[string]any{"species": "CAT"})
	s.Require().NoError(err)
	values := pets.GetFields()["pets"].GetListValue().GetValues()
	s.Require().Len(values, 1)
	s.Equal("Mia", values[0].GetStructValue().GetFields()["name"].GetStringValue())

	slots, err := s.client.Call(context.Background(), grpcsvc.MethodListFreeAppointments, nil)
	s.Require().NoError(err)
	free := slots.GetFields()["appointments"].GetListValue().GetValues()
	s.Require().Len(free, 1)
	s.Equal("A2", free[0].GetStructValue().GetFields()["appointment_id"].GetStringValue())

	_, err = s.client.Call(context.Background(), grpcsvc.MethodGetRequest, map[string]any{})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func TestAdoptionService_WithoutGuard(t *testing.T) {
	requests := memory.NewRequestRepository()
	manager := lifecycle.NewNoop(loggerForTests())
	queries := query.NewService(query.Dependencies{Requests: requests}, loggerForTests())
	svc := grpcsvc.NewAdoptionService(manager, queries, nil, loggerForTests())

	in, err := structpb.NewStruct(map[string]any{"request_id": "r1"})
	require.NoError(t, err)

	resp, err := svc.Cancel(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, resp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}
