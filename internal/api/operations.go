package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// OperationsServiceName is the fully qualified gRPC service name.
const OperationsServiceName = "instana.sre.v1.Operations"

// OperationsServer is the gRPC surface of the toolkit. Every method takes an empty request
// and answers with the same JSON document the HTTP surface returns, as a Struct.
type OperationsServer interface {
	FetchPRCDetails(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	TriggerRemediation(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	RecommendActions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

type operationCall func(srv OperationsServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)

// methodHandler matches grpc.MethodDesc.Handler.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// OperationsServiceDesc describes the Operations service for grpc.Server.RegisterService.
var OperationsServiceDesc = grpc.ServiceDesc{
	ServiceName: OperationsServiceName,
	HandlerType: (*OperationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FetchPRCDetails",
			Handler: unaryHandler("FetchPRCDetails", func(srv OperationsServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.FetchPRCDetails(ctx, req)
			}),
		},
		{
			MethodName: "TriggerRemediation",
			Handler: unaryHandler("TriggerRemediation", func(srv OperationsServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.TriggerRemediation(ctx, req)
			}),
		},
		{
			MethodName: "RecommendActions",
			Handler: unaryHandler("RecommendActions", func(srv OperationsServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.RecommendActions(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "instana/sre/v1/operations.proto",
}

// RegisterOperationsServer registers srv on s.
func RegisterOperationsServer(s grpc.ServiceRegistrar, srv OperationsServer) {
	s.RegisterService(&OperationsServiceDesc, srv)
}

// FullMethod returns the invoke path of an Operations method.
func FullMethod(method string) string {
	return "/" + OperationsServiceName + "/" + method
}

func unaryHandler(method string, call operationCall) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OperationsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OperationsServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
