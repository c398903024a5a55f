package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ClusterCoordinationServer is the server-side interface a protoc-gen-
// go-grpc _grpc.pb.go would normally generate from the service
// definition
type ClusterCoordinationServer interface {
	DistributeConfig(context.Context, *DistributeConfigRequest) (*DistributeConfigResponse, error)
	StartTest(context.Context, *StartTestRequest) (*StartTestResponse, error)
	StopTest(context.Context, *StopTestRequest) (*StopTestResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

// UnimplementedClusterCoordinationServer embeds into server
// implementations that don't implement every method, mirroring protoc-
// gen-go-grpc's forward-compatibility shim.
type UnimplementedClusterCoordinationServer struct{}

func (UnimplementedClusterCoordinationServer) DistributeConfig(context.Context, *DistributeConfigRequest) (*DistributeConfigResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DistributeConfig not implemented")
}
func (UnimplementedClusterCoordinationServer) StartTest(context.Context, *StartTestRequest) (*StartTestResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartTest not implemented")
}
func (UnimplementedClusterCoordinationServer) StopTest(context.Context, *StopTestRequest) (*StopTestResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StopTest not implemented")
}
func (UnimplementedClusterCoordinationServer) HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

const serviceName = "loadgen.cluster.v1.ClusterCoordination"

// ServiceDesc is the grpc.ServiceDesc a protoc-gen-go-grpc _grpc.pb.go
// would emit; RegisterClusterCoordinationServer wires an implementation
// into a *grpc.Server exactly as generated code does.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClusterCoordinationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DistributeConfig", Handler: distributeConfigHandler},
		{MethodName: "StartTest", Handler: startTestHandler},
		{MethodName: "StopTest", Handler: stopTestHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "loadgen/cluster/v1/cluster.proto",
}

func RegisterClusterCoordinationServer(s grpc.ServiceRegistrar, srv ClusterCoordinationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func distributeConfigHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DistributeConfigRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterCoordinationServer).DistributeConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/DistributeConfig"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterCoordinationServer).DistributeConfig(ctx, req.(*DistributeConfigRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func startTestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartTestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterCoordinationServer).StartTest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/StartTest"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterCoordinationServer).StartTest(ctx, req.(*StartTestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func stopTestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StopTestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterCoordinationServer).StopTest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/StopTest"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterCoordinationServer).StopTest(ctx, req.(*StopTestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterCoordinationServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HealthCheck"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterCoordinationServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ClusterCoordinationClient is the client-side interface a protoc-gen-
// go-grpc _grpc.pb.go would generate.
type ClusterCoordinationClient interface {
	DistributeConfig(ctx context.Context, in *DistributeConfigRequest, opts ...grpc.CallOption) (*DistributeConfigResponse, error)
	StartTest(ctx context.Context, in *StartTestRequest, opts ...grpc.CallOption) (*StartTestResponse, error)
	StopTest(ctx context.Context, in *StopTestRequest, opts ...grpc.CallOption) (*StopTestResponse, error)
	HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
}

type clusterCoordinationClient struct {
	cc grpc.ClientConnInterface
}

func NewClusterCoordinationClient(cc grpc.ClientConnInterface) ClusterCoordinationClient {
	return &clusterCoordinationClient{cc}
}

func (c *clusterCoordinationClient) DistributeConfig(ctx context.Context, in *DistributeConfigRequest, opts ...grpc.CallOption) (*DistributeConfigResponse, error) {
	out := new(DistributeConfigResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/DistributeConfig", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterCoordinationClient) StartTest(ctx context.Context, in *StartTestRequest, opts ...grpc.CallOption) (*StartTestResponse, error) {
	out := new(StartTestResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/StartTest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterCoordinationClient) StopTest(ctx context.Context, in *StopTestRequest, opts ...grpc.CallOption) (*StopTestResponse, error) {
	out := new(StopTestResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/StopTest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterCoordinationClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/HealthCheck", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
