package gameserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "idlebattle.v1.CombatService"

// Method names exposed by CombatService.
const (
	MethodDuel        = "Duel"
	MethodEncounter   = "Encounter"
	MethodPlayerLogs  = "PlayerLogs"
	MethodSessionLogs = "SessionLogs"
	MethodStats       = "Stats"
	MethodClearLogs   = "ClearLogs"
)

// CombatServiceServer is the server API for CombatService. Every message is a
// google.protobuf.Struct carrying a JSON-shaped body.
type CombatServiceServer interface {
	Duel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Encounter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayerLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SessionLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CombatServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CombatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CombatServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CombatServiceDesc describes CombatService for grpc.Server.RegisterService.
var CombatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CombatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodDuel, Handler: unaryHandler(MethodDuel, CombatServiceServer.Duel)},
		{MethodName: MethodEncounter, Handler: unaryHandler(MethodEncounter, CombatServiceServer.Encounter)},
		{MethodName: MethodPlayerLogs, Handler: unaryHandler(MethodPlayerLogs, CombatServiceServer.PlayerLogs)},
		{MethodName: MethodSessionLogs, Handler: unaryHandler(MethodSessionLogs, CombatServiceServer.SessionLogs)},
		{MethodName: MethodStats, Handler: unaryHandler(MethodStats, CombatServiceServer.Stats)},
		{MethodName: MethodClearLogs, Handler: unaryHandler(MethodClearLogs, CombatServiceServer.ClearLogs)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "idlebattle/v1/combat.proto",
}

// RegisterCombatServiceServer registers srv with s.
func RegisterCombatServiceServer(s grpc.ServiceRegistrar, srv CombatServiceServer) {
	s.RegisterService(&CombatServiceDesc, srv)
}

// FullMethod returns the "/service/method" path for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CombatServiceClient is a thin client for CombatService.
type CombatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCombatServiceClient wraps cc.
func NewCombatServiceClient(cc grpc.ClientConnInterface) *CombatServiceClient {
	return &CombatServiceClient{cc: cc}
}

// Call invokes method with in and returns the response body.
func (c *CombatServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
