package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/eventfilter/internal/core/api"
	"github.com/solatis/eventfilter/internal/core/config"
)

// stubFilter echoes requests and reports the deadline it observed.
type stubFilter struct {
	deadline time.Duration
}

func (s *stubFilter) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.deadline = time.Until(dl)
	}
	return req, nil
}

func (s *stubFilter) ListRules(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unavailable, "no rules")
}

func startGRPC(t *testing.T, cfg *config.ServerConfig, svc api.FilterServer) (*GRPCServer, *grpc.ClientConn) {
	t.Helper()

	srv, err := NewGRPCServer(cfg, svc, zerolog.Nop())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func TestGRPCServer_ServesFilterAndHealth(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.RequestTimeout = 5 * time.Second
	stub := &stubFilter{}
	srv, conn := startGRPC(t, &cfg, stub)

	ctx := context.Background()
	health := grpc_health_v1.NewHealthClient(conn)
	resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: api.FilterServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	client := api.NewFilterClient(conn)
	req, err := structpb.NewStruct(map[string]any{"type": "keydown"})
	require.NoError(t, err)
	out, err := client.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "keydown", out.AsMap()["type"])
	assert.Greater(t, stub.deadline, time.Duration(0))
	assert.LessOrEqual(t, stub.deadline, 5*time.Second)

	_, err = client.ListRules(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(shutdownCtx))
}

func TestNewGRPCServer_NilArguments(t *testing.T) {
	cfg := config.DefaultConfig().Server

	_, err := NewGRPCServer(nil, &stubFilter{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewGRPCServer(&cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestTimeoutInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: api.FilterDispatchMethod}

	var got time.Duration
	var hasDeadline bool
	handler := func(ctx context.Context, req any) (any, error) {
		var dl time.Time
		dl, hasDeadline = ctx.Deadline()
		got = time.Until(dl)
		return nil, nil
	}

	_, err := TimeoutInterceptor(time.Second)(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.True(t, hasDeadline)
	assert.LessOrEqual(t, got, time.Second)

	// A shorter caller deadline wins.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = TimeoutInterceptor(time.Hour)(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.LessOrEqual(t, got, 50*time.Millisecond)

	_, err = TimeoutInterceptor(0)(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.False(t, hasDeadline)
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	info := &grpc.UnaryServerInfo{FullMethod: api.FilterDispatchMethod}

	_, err := LoggingInterceptor(log)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad event")
	})
	require.Error(t, err)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"method":"/eventfilter.v1.Filter/Dispatch"`)
	assert.Contains(t, buf.String(), `"code":"InvalidArgument"`)

	buf.Reset()
	resp, err := LoggingInterceptor(log)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Contains(t, buf.String(), `"code":"OK"`)
}

func TestHTTPServer_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "eventfilter_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv, err := NewHTTPServer(":0", reg, stream, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/metrics", http.StatusOK, "eventfilter_test_total 1"},
		{"/health", http.StatusOK, "OK"},
		{"/events", http.StatusTeapot, ""},
		{"/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
			var body bytes.Buffer
			_, _ = body.ReadFrom(resp.Body)
			assert.Contains(t, body.String(), tt.body)
		})
	}
}

func TestHTTPServer_StartShutdown(t *testing.T) {
	srv, err := NewHTTPServer("127.0.0.1:0", prometheus.NewRegistry(), nil, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = NewHTTPServer(":0", nil, nil, zerolog.Nop())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}
