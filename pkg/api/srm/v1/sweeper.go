// Package srmv1 is the srmd control API: a gRPC service whose messages
// are carried as google.protobuf.Struct so no generated code is needed.
package srmv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "srm.v1.Sweeper"

// Full method names.
const (
	Sweeper_Status_FullMethodName   = "/" + ServiceName + "/Status"
	Sweeper_Sweep_FullMethodName    = "/" + ServiceName + "/Sweep"
	Sweeper_Shutdown_FullMethodName = "/" + ServiceName + "/Shutdown"
	Sweeper_Watch_FullMethodName    = "/" + ServiceName + "/Watch"
)

// SweeperServer is implemented by srmd.
type SweeperServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Sweep(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterSweeperServer registers srv with s.
func RegisterSweeperServer(s grpc.ServiceRegistrar, srv SweeperServer) {
	s.RegisterService(&Sweeper_ServiceDesc, srv)
}

// Sweeper_ServiceDesc describes the service for grpc.Server.
var Sweeper_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SweeperServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unary(Sweeper_Status_FullMethodName, SweeperServer.Status)},
		{MethodName: "Sweep", Handler: unary(Sweeper_Sweep_FullMethodName, SweeperServer.Sweep)},
		{MethodName: "Shutdown", Handler: unary(Sweeper_Shutdown_FullMethodName, SweeperServer.Shutdown)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "srm/v1/sweeper.proto",
}

func unary[R any](method string, call func(SweeperServer, context.Context, *emptypb.Empty) (R, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SweeperServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SweeperServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SweeperServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// SweeperClient is the client side of the service.
type SweeperClient interface {
	Status(ctx context.Context, opts ...grpc.CallOption) (*Status, error)
	Sweep(ctx context.Context, opts ...grpc.CallOption) (*SweepResult, error)
	Shutdown(ctx context.Context, opts ...grpc.CallOption) error
	Watch(ctx context.Context, opts ...grpc.CallOption) (EventStream, error)
}

// EventStream yields daemon events until the server closes the stream
// (io.EOF) or the context ends.
type EventStream interface {
	Recv() (*Event, error)
}

type sweeperClient struct {
	cc grpc.ClientConnInterface
}

// NewSweeperClient wraps cc.
func NewSweeperClient(cc grpc.ClientConnInterface) SweeperClient {
	return &sweeperClient{cc: cc}
}

func (c *sweeperClient) Status(ctx context.Context, opts ...grpc.CallOption) (*Status, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Sweeper_Status_FullMethodName, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return StatusFromProto(out), nil
}

func (c *sweeperClient) Sweep(ctx context.Context, opts ...grpc.CallOption) (*SweepResult, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Sweeper_Sweep_FullMethodName, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return SweepResultFromProto(out), nil
}

func (c *sweeperClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, Sweeper_Shutdown_FullMethodName, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *sweeperClient) Watch(ctx context.Context, opts ...grpc.CallOption) (EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &Sweeper_ServiceDesc.Streams[0], Sweeper_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return eventStream{x}, nil
}

type eventStream struct {
	grpc.ServerStreamingClient[structpb.Struct]
}

func (s eventStream) Recv() (*Event, error) {
	msg, err := s.ServerStreamingClient.Recv()
	if err != nil {
		return nil, err
	}
	return EventFromProto(msg), nil
}

// Status describes a running srmd.
type Status struct {
	PID          int
	Version      string
	StartedAt    time.Time
	StorageDir   string
	RunID        string
	Running      bool
	Iterations   int64
	LastRun      time.Time
	LastElapsed  time.Duration
	LastPurged   int
	LastFailed   int
	LastError    string
	NextRun      time.Time
	Tracked      int
	TrackedBytes int64
}

// Proto encodes s.
func (s *Status) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"pid":             s.PID,
		"version":         s.Version,
		"started_at":      formatTime(s.StartedAt),
		"storage_dir":     s.StorageDir,
		"run_id":          s.RunID,
		"running":         s.Running,
		"iterations":      s.Iterations,
		"last_run":        formatTime(s.LastRun),
		"last_elapsed_ms": s.LastElapsed.Milliseconds(),
		"last_purged":     s.LastPurged,
		"last_failed":     s.LastFailed,
		"last_error":      s.LastError,
		"next_run":        formatTime(s.NextRun),
		"tracked_entries": s.Tracked,
		"tracked_bytes":   s.TrackedBytes,
	})
}

// StatusFromProto decodes a Status; missing fields stay zero.
func StatusFromProto(p *structpb.Struct) *Status {
	f := fields(p)
	return &Status{
		PID:          int(f.number("pid")),
		Version:      f.str("version"),
		StartedAt:    f.time("started_at"),
		StorageDir:   f.str("storage_dir"),
		RunID:        f.str("run_id"),
		Running:      f.boolean("running"),
		Iterations:   int64(f.number("iterations")),
		LastRun:      f.time("last_run"),
		LastElapsed:  time.Duration(f.number("last_elapsed_ms")) * time.Millisecond,
		LastPurged:   int(f.number("last_purged")),
		LastFailed:   int(f.number("last_failed")),
		LastError:    f.str("last_error"),
		NextRun:      f.time("next_run"),
		Tracked:      int(f.number("tracked_entries")),
		TrackedBytes: int64(f.number("tracked_bytes")),
	}
}

// SweepResult summarises one sweep run on request.
type SweepResult struct {
	Purged      int
	PurgedBytes int64
	Retained    int
	Elapsed     time.Duration
	Failures    []string
}

// Proto encodes r.
func (r *SweepResult) Proto() (*structpb.Struct, error) {
	failures := make([]any, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = f
	}
	return structpb.NewStruct(map[string]any{
		"purged":       r.Purged,
		"purged_bytes": r.PurgedBytes,
		"retained":     r.Retained,
		"elapsed_ms":   r.Elapsed.Milliseconds(),
		"failures":     failures,
	})
}

// SweepResultFromProto decodes a SweepResult.
func SweepResultFromProto(p *structpb.Struct) *SweepResult {
	f := fields(p)
	r := &SweepResult{
		Purged:      int(f.number("purged")),
		PurgedBytes: int64(f.number("purged_bytes")),
		Retained:    int(f.number("retained")),
		Elapsed:     time.Duration(f.number("elapsed_ms")) * time.Millisecond,
	}
	for _, v := range f["failures"].GetListValue().GetValues() {
		r.Failures = append(r.Failures, v.GetStringValue())
	}
	return r
}

// Event kinds sent by Watch.
const (
	EventSwept       = "sweep"
	EventPurged      = "purged"
	EventPurgeFailed = "purge-failed"
)

// Event is one notification from the daemon. Sweep events carry the
// counts; purge events carry the entry.
type Event struct {
	Type         string
	Time         time.Time
	Name         string
	OriginalPath string
	Size         int64
	Purged       int
	Failed       int
	Error        string
}

// Proto encodes e.
func (e *Event) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":          e.Type,
		"time":          formatTime(e.Time),
		"name":          e.Name,
		"original_path": e.OriginalPath,
		"size":          e.Size,
		"purged":        e.Purged,
		"failed":        e.Failed,
		"error":         e.Error,
	})
}

// EventFromProto decodes an Event.
func EventFromProto(p *structpb.Struct) *Event {
	f := fields(p)
	return &Event{
		Type:         f.str("type"),
		Time:         f.time("time"),
		Name:         f.str("name"),
		OriginalPath: f.str("original_path"),
		Size:         int64(f.number("size")),
		Purged:       int(f.number("purged")),
		Failed:       int(f.number("failed")),
		Error:        f.str("error"),
	}
}

type fieldMap map[string]*structpb.Value

func fields(p *structpb.Struct) fieldMap {
	return p.GetFields()
}

func (f fieldMap) str(k string) string     { return f[k].GetStringValue() }
func (f fieldMap) number(k string) float64 { return f[k].GetNumberValue() }
func (f fieldMap) boolean(k string) bool   { return f[k].GetBoolValue() }

func (f fieldMap) time(k string) time.Time {
	s := f.str(k)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
