package srmv1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestStatusProto(t *testing.T) {
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	in := &Status{
		PID:          42,
		StartedAt:    started,
		Running:      true,
		Iterations:   3,
		LastElapsed:  1500 * time.Millisecond,
		LastPurged:   2,
		Tracked:      7,
		TrackedBytes: 5 << 30,
	}
	p, err := in.Proto()
	require.NoError(t, err)

	out := StatusFromProto(p)
	assert.Equal(t, in, out)
	assert.True(t, out.LastRun.IsZero())
}

func TestSweepResultFromEmpty(t *testing.T) {
	r := SweepResultFromProto(&structpb.Struct{})
	assert.Zero(t, r.Purged)
	assert.Empty(t, r.Failures)

	r = SweepResultFromProto(nil)
	assert.Zero(t, r.Elapsed)
}

type stubServer struct{ calls []string }

func (s *stubServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	s.calls = append(s.calls, "status")
	return (&Status{PID: 1}).Proto()
}

func (s *stubServer) Sweep(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	s.calls = append(s.calls, "sweep")
	return nil, errors.New("boom")
}

func (s *stubServer) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	s.calls = append(s.calls, "shutdown")
	return &emptypb.Empty{}, nil
}

func (s *stubServer) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	s.calls = append(s.calls, "watch")
	return nil
}

func TestEventProto(t *testing.T) {
	in := &Event{
		Type:         EventPurged,
		Time:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Name:         "notes.txt",
		OriginalPath: "/home/u/notes.txt",
		Size:         2048,
	}
	p, err := in.Proto()
	require.NoError(t, err)
	assert.Equal(t, in, EventFromProto(p))

	sweep := &Event{Type: EventSwept, Purged: 3, Failed: 1, Error: "disk full"}
	p, err = sweep.Proto()
	require.NoError(t, err)
	assert.Equal(t, sweep, EventFromProto(p))
}

func TestHandlersUseInterceptor(t *testing.T) {
	srv := &stubServer{}
	var seen []string
	icpt := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return h(ctx, req)
	}
	dec := func(any) error { return nil }

	for _, m := range Sweeper_ServiceDesc.Methods {
		_, _ = m.Handler(srv, context.Background(), dec, icpt)
	}
	assert.Equal(t, []string{"status", "sweep", "shutdown"}, srv.calls)
	assert.Equal(t, []string{
		Sweeper_Status_FullMethodName,
		Sweeper_Sweep_FullMethodName,
		Sweeper_Shutdown_FullMethodName,
	}, seen)

	_, err := Sweeper_ServiceDesc.Methods[1].Handler(srv, context.Background(), dec, nil)
	assert.EqualError(t, err, "boom")
}
