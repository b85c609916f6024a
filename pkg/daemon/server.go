// Package daemon hosts srmd: the gRPC control service over a unix
// socket plus the PID and status files that let srm find it.
package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
)

// Config holds daemon server configuration.
type Config struct {
	SocketPath string
}

// Server is the srmd gRPC server.
type Server struct {
	cfg      Config
	grpc     *grpc.Server
	listener net.Listener
}

// NewServer listens on cfg.SocketPath and registers svc.
func NewServer(cfg Config, svc srmv1.SweeperServer) (*Server, error) {
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o700); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	// Only the owning user may control the daemon.
	if err := os.Chmod(cfg.SocketPath, 0o600); err != nil {
		_ = listener.Close()
		return nil, err
	}

	srv := &Server{
		cfg:      cfg,
		grpc:     grpc.NewServer(),
		listener: listener,
	}
	srmv1.RegisterSweeperServer(srv.grpc, svc)
	return srv, nil
}

// Serve starts the gRPC server. Blocks until stopped.
func (s *Server) Serve() error {
	return s.grpc.Serve(s.listener)
}

// Close stops the server and removes the socket.
func (s *Server) Close() error {
	s.grpc.GracefulStop()
	return os.RemoveAll(s.cfg.SocketPath)
}
