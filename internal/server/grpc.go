package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"saas-core/backend/internal/server/interceptors"
)

// PublicMethods are the unary RPCs callable without a Bearer token.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_List_FullMethodName:  true,
}

// GRPCDeps holds gRPC server dependencies.
type GRPCDeps struct {
	Tokens interceptors.AccessVerifier
	Health *health.Server
	// Reflection registers the reflection service (development only).
	Reflection bool
}

// NewGRPCServer returns a gRPC server with OTel instrumentation, the auth interceptor and the
// standard health service registered.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.AuthUnary(deps.Tokens, PublicMethods)),
	}, opts...)
	s := grpc.NewServer(opts...)
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
	if deps.Reflection {
		reflection.Register(s)
	}
	return s
}
