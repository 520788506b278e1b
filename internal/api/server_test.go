package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/instana-sre/internal/config"
)

type stubOperations struct{}

func (stubOperations) FetchPRCDetails(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"SERVICE - cart - Unknown": map[string]any{"problem": "Slow calls"}})
}

func (stubOperations) TriggerRemediation(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unavailable, "instana unreachable")
}

func (stubOperations) RecommendActions(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"results": []any{}})
}

func TestServerServesOperationsAndHealth(t *testing.T) {
	server, err := NewServer(config.ServerConfig{GRPCAddress: "127.0.0.1:0"}, stubOperations{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, FullMethod("FetchPRCDetails"), &emptypb.Empty{}, out); err != nil {
		t.Fatalf("invoke FetchPRCDetails: %v", err)
	}
	if _, ok := out.GetFields()["SERVICE - cart - Unknown"]; !ok {
		t.Fatalf("unexpected response: %v", out)
	}

	err = conn.Invoke(ctx, FullMethod("TriggerRemediation"), &emptypb.Empty{}, &structpb.Struct{})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: OperationsServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status: %v", health.GetStatus())
	}
}

func TestNewServerRequiresAddress(t *testing.T) {
	if _, err := NewServer(config.ServerConfig{}, stubOperations{}); err == nil {
		t.Fatalf("expected error without grpc address")
	}
}
