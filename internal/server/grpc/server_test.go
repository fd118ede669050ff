package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type pinger struct{ err error }

func (p *pinger) PingContext(context.Context) error { return p.err }

func check(t *testing.T, s *HealthServer, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error: %v", service, err)
	}
	return resp.GetStatus()
}

func TestProbe_ReflectsDatabase(t *testing.T) {
	t.Parallel()

	db := &pinger{}
	s := NewHealthServer("127.0.0.1:0", db, logging.Discard())

	s.probe(context.Background())
	if got := check(t, s, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %v, want SERVING", got)
	}
	if got := check(t, s, UploadsService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("uploads status = %v, want SERVING", got)
	}

	db.err = errors.New("connection refused")
	s.probe(context.Background())
	if got := check(t, s, UploadsService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("uploads status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	t.Parallel()

	s := NewHealthServer("127.0.0.1:0", nil, logging.Discard())
	s.probe(context.Background())

	_, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	t.Parallel()

	s := NewHealthServer("127.0.0.1:0", nil, logging.Discard())
	want := errors.New("boom")
	resp, err := s.loggingInterceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "resp", want })
	if resp != "resp" || !errors.Is(err, want) {
		t.Fatalf("got (%v, %v)", resp, err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewHealthServer("127.0.0.1:0", &pinger{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewHealthServer("127.0.0.1:99999", nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
