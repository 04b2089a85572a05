// Package api exposes the engine to UI processes over gRPC. Services are
// declared by hand and every request and response is a
// google.protobuf.Struct, so clients need no generated stubs.
package api

import (
	"context"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Package is the protobuf package every service lives in.
const Package = "ringcore.v1"

// Service names, without the package.
const (
	AccountServiceName      = "AccountService"
	ConversationServiceName = "ConversationService"
	CallServiceName         = "CallService"
)

// FullMethod returns the gRPC path of a method, e.g.
// "/ringcore.v1.CallService/HangUp".
func FullMethod(service, method string) string {
	return "/" + Package + "." + service + "/" + method
}

type unaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type streamFunc func(req *structpb.Struct, stream grpc.ServerStream) error

// register builds a ServiceDesc from the handler tables and registers it.
func register(r grpc.ServiceRegistrar, impl any, name string, unary map[string]unaryFunc, streams map[string]streamFunc) {
	sd := &grpc.ServiceDesc{
		ServiceName: Package + "." + name,
		HandlerType: (*any)(nil),
		Metadata:    "ringcore/v1/" + name,
	}
	for _, m := range sortedKeys(unary) {
		sd.Methods = append(sd.Methods, unaryMethod(sd.ServiceName, m, unary[m]))
	}
	for _, m := range sortedKeys(streams) {
		fn := streams[m]
		sd.Streams = append(sd.Streams, grpc.StreamDesc{
			StreamName:    m,
			ServerStreams: true,
			Handler: func(_ any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return fn(in, stream)
			},
		})
	}
	r.RegisterService(sd, impl)
}

func unaryMethod(service, method string, fn unaryFunc) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Request field accessors. Missing fields read as zero values.

func stringArg(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requireString(req *structpb.Struct, name string) (string, error) {
	v := stringArg(req, name)
	if v == "" {
		return "", grpcstatus.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

func intArg(req *structpb.Struct, name string, def int) int {
	v, ok := req.GetFields()[name]
	if !ok {
		return def
	}
	return int(v.GetNumberValue())
}

func boolArg(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return s, nil
}

func okReply() (*structpb.Struct, error) {
	return reply(map[string]any{"ok": true})
}
