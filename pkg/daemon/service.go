package daemon

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
	"github.com/jamesainslie/srm/pkg/daemon/broadcaster"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/sweeper"
	"github.com/jamesainslie/srm/pkg/srm/trash"
)

// Loop is the part of *sweeper.Sweeper the service drives.
type Loop interface {
	Trigger(ctx context.Context) (trash.SweepReport, error)
	Status() sweeper.Status
}

// Service implements the srm.v1.Sweeper gRPC service.
type Service struct {
	loop       Loop
	events     *broadcaster.Broadcaster
	storageDir string
	version    string
	startTime  time.Time
	log        *logging.Logger

	shutdownOnce sync.Once
	shutdown     func()
}

// NewService exposes loop. Watch streams from events, or is unavailable
// when events is nil. shutdown is called once when a client asks the
// daemon to stop.
func NewService(loop Loop, events *broadcaster.Broadcaster, storageDir, version string, shutdown func()) *Service {
	if shutdown == nil {
		shutdown = func() {}
	}
	return &Service{
		loop:       loop,
		events:     events,
		storageDir: storageDir,
		version:    version,
		startTime:  time.Now(),
		log:        logging.Get("daemon"),
		shutdown:   shutdown,
	}
}

// Status reports the process and the latest sweep.
func (s *Service) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.loop.Status()
	reply := &srmv1.Status{
		PID:          os.Getpid(),
		Version:      s.version,
		StartedAt:    s.startTime,
		StorageDir:   s.storageDir,
		RunID:        st.RunID,
		Running:      st.Running,
		Iterations:   st.Iterations,
		LastRun:      st.LastRun,
		LastElapsed:  st.LastElapsed,
		LastPurged:   st.LastPurged,
		LastFailed:   st.LastFailed,
		LastError:    st.LastError,
		NextRun:      st.NextRun,
		Tracked:      st.Tracked,
		TrackedBytes: st.TrackedBytes,
	}
	out, err := reply.Proto()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

// Sweep runs a sweep through the loop and waits for it.
func (s *Service) Sweep(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, err := s.loop.Trigger(ctx)
	switch {
	case errors.Is(err, sweeper.ErrNotRunning):
		return nil, status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	case err != nil:
		return nil, status.Errorf(codes.Internal, "sweep: %v", err)
	}

	reply := &srmv1.SweepResult{
		Purged:      len(report.Purged),
		PurgedBytes: report.PurgedBytes(),
		Retained:    len(report.Retained),
		Elapsed:     report.Elapsed,
	}
	for _, f := range report.Failed {
		reply.Failures = append(reply.Failures, f.Entry.Name()+": "+f.Err.Error())
	}
	out, err := reply.Proto()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode sweep result: %v", err)
	}
	return out, nil
}

// Shutdown asks the daemon to exit after the current sweep.
func (s *Service) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.log.Info("shutdown requested")
	s.shutdownOnce.Do(s.shutdown)
	return &emptypb.Empty{}, nil
}

// Watch streams sweep events until the client goes away or the
// broadcaster closes.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.events == nil {
		return status.Error(codes.Unimplemented, "event streaming is not enabled")
	}
	sub := s.events.Subscribe()
	if sub == nil {
		return status.Error(codes.Unavailable, "daemon is shutting down")
	}
	defer s.events.Unsubscribe(sub.ID)
	s.log.Debug("watcher attached", "subscriber", sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			msg, err := ev.Proto()
			if err != nil {
				return status.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

var _ srmv1.SweeperServer = (*Service)(nil)
