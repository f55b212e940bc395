package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса заявок.
const ServiceName = "shelter.v1.AdoptionService"

// Полные имена методов.
const (
	MethodSubmit               = "/" + ServiceName + "/Submit"
	MethodAccept               = "/" + ServiceName + "/Accept"
	MethodReject               = "/" + ServiceName + "/Reject"
	MethodRequestModification  = "/" + ServiceName + "/RequestModification"
	MethodCancel               = "/" + ServiceName + "/Cancel"
	MethodCancelAppointment    = "/" + ServiceName + "/CancelAppointment"
	MethodGetRequest           = "/" + ServiceName + "/GetRequest"
	MethodListRequests         = "/" + ServiceName + "/ListRequests"
	MethodListAvailablePets    = "/" + ServiceName + "/ListAvailablePets"
	MethodListFreeAppointments = "/" + ServiceName + "/ListFreeAppointments"
)

// AdoptionServiceServer — серверная сторона API заявок. Запросы и ответы передаются
// как google.protobuf.Struct.
type AdoptionServiceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Accept(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestModification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailablePets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFreeAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAdoptionServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterAdoptionServiceServer(s grpc.ServiceRegistrar, srv AdoptionServiceServer) {
	s.RegisterService(&AdoptionServiceDesc, srv)
}

type unaryCall func(AdoptionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(AdoptionServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		})
	}
}

// AdoptionServiceDesc описывает сервис для grpc.Server.
var AdoptionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdoptionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(MethodSubmit, AdoptionServiceServer.Submit)},
		{MethodName: "Accept", Handler: unaryHandler(MethodAccept, AdoptionServiceServer.Accept)},
		{MethodName: "Reject", Handler: unaryHandler(MethodReject, AdoptionServiceServer.Reject)},
		{MethodName: "RequestModification", Handler: unaryHandler(MethodRequestModification, AdoptionServiceServer.RequestModification)},
		{MethodName: "Cancel", Handler: unaryHandler(MethodCancel, AdoptionServiceServer.Cancel)},
		{MethodName: "CancelAppointment", Handler: unaryHandler(MethodCancelAppointment, AdoptionServiceServer.CancelAppointment)},
		{MethodName: "GetRequest", Handler: unaryHandler(MethodGetRequest, AdoptionServiceServer.GetRequest)},
		{MethodName: "ListRequests", Handler: unaryHandler(MethodListRequests, AdoptionServiceServer.ListRequests)},
		{MethodName: "ListAvailablePets", Handler: unaryHandler(MethodListAvailablePets, AdoptionServiceServer.ListAvailablePets)},
		{MethodName: "ListFreeAppointments", Handler: unaryHandler(MethodListFreeAppointments, AdoptionServiceServer.ListFreeAppointments)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shelter/v1/adoption.proto",
}

// AdoptionServiceClient — клиент API заявок.
type AdoptionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAdoptionServiceClient создаёт клиента поверх соединения.
func NewAdoptionServiceClient(cc grpc.ClientConnInterface) *AdoptionServiceClient {
	return &AdoptionServiceClient{cc: cc}
}

// Invoke вызывает метод по полному имени.
func (c *AdoptionServiceClient) Invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Call собирает запрос из map и вызывает метод.
func (c *AdoptionServiceClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, method, in, opts...)
}
