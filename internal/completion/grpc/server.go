// Package grpc exposes a completion.Completer over gRPC and provides the
// matching client. Messages are google.protobuf.Struct so no generated code is needed.
package grpc

import (
	"context"

	"github.com/ankittk/devcrew/internal/completion"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName    = "devcrew.completion.v1.Completion"
	completeMethod = "/" + serviceName + "/Complete"
)

// CompletionServer is the server API for the Completion service.
type CompletionServer interface {
	Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CompletionServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Complete",
		Handler:    completeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "devcrew/completion/v1/completion.proto",
}

func completeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompletionServer).Complete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: completeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompletionServer).Complete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Register adds the Completion service to s.
func Register(s grpc.ServiceRegistrar, srv CompletionServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server wraps a completion.Completer and exposes it via gRPC.
type Server struct {
	Completer completion.Completer
}

// Complete runs one completion on the wrapped backend.
func (s *Server) Complete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.Completer == nil {
		return nil, status.Error(codes.Internal, "completer not set")
	}
	req := structToRequest(in)
	if req.Prompt == "" {
		return nil, status.Error(codes.InvalidArgument, "prompt is required")
	}
	text, err := s.Completer.Complete(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"text":    text,
		"backend": s.Completer.Name(),
	})
}
