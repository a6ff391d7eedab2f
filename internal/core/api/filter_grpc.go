package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire contract of the eventfilter.v1.Filter service. Messages are
// google.protobuf.Struct so clients in any language can call it with the
// well-known types alone.
const (
	FilterServiceName     = "eventfilter.v1.Filter"
	FilterDispatchMethod  = "/eventfilter.v1.Filter/Dispatch"
	FilterListRulesMethod = "/eventfilter.v1.Filter/ListRules"
)

// FilterServer is the server API for the Filter service.
type FilterServer interface {
	// Dispatch feeds one event, or a batch under "events", to the engine.
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListRules returns the compiled rule table and its etag.
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterFilterServer registers srv with a gRPC server.
func RegisterFilterServer(s grpc.ServiceRegistrar, srv FilterServer) {
	s.RegisterService(&FilterServiceDesc, srv)
}

// FilterServiceDesc is the grpc.ServiceDesc for the Filter service.
var FilterServiceDesc = grpc.ServiceDesc{
	ServiceName: FilterServiceName,
	HandlerType: (*FilterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: filterDispatchHandler},
		{MethodName: "ListRules", Handler: filterListRulesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventfilter/v1/filter.proto",
}

func filterDispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FilterServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FilterDispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FilterServer).Dispatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func filterListRulesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FilterServer).ListRules(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FilterListRulesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FilterServer).ListRules(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FilterClient is the client API for the Filter service.
type FilterClient struct {
	cc grpc.ClientConnInterface
}

// NewFilterClient creates a client over an established connection.
func NewFilterClient(cc grpc.ClientConnInterface) *FilterClient {
	return &FilterClient{cc: cc}
}

// Dispatch calls Filter.Dispatch.
func (c *FilterClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FilterDispatchMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRules calls Filter.ListRules.
func (c *FilterClient) ListRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FilterListRulesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
