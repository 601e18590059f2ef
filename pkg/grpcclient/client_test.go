package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestInterceptorRetriesUnavailable(t *testing.T) {
	interceptor := unaryClientInterceptor(ClientConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	calls := 0
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil,
		func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			calls++
			if calls < 3 {
				return status.Error(codes.Unavailable, "down")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestInterceptorDoesNotRetryOtherCodes(t *testing.T) {
	interceptor := unaryClientInterceptor(ClientConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	calls := 0
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil,
		func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			calls++
			return status.Error(codes.InvalidArgument, "bad")
		})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, 1, calls)
}

func TestNewClientHealthCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := NewClient(ClientConfig{
		Target:         lis.Addr().String(),
		ConnTimeout:    time.Second,
		RequestTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
