package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/session"
)

// Server serves the control API over the session's Unix domain socket.
type Server struct {
	echo       *echo.Echo
	listener   net.Listener
	socketPath string
	log        *zap.Logger
}

// NewServer binds the control API to the session socket. The socket is
// chmod 0600; possession of the socket is the only authentication the
// local API has.
func NewServer(p Params, log *zap.Logger, handler *api.Handler) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	handler.Register(e)

	return &Server{
		echo:       e,
		listener:   listener,
		socketPath: socketPath,
		log:        log.Named("server"),
	}, nil
}

// Start begins serving requests. Blocks until stopped.
func (s *Server) Start() error {
	s.log.Info("control server starting", zap.String("socket", s.socketPath))
	s.echo.Listener = s.listener
	err := s.echo.Start("")
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.log.Info("control server stopping")
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Warn("shutdown", zap.Error(err))
	}
	_ = os.Remove(s.socketPath)
}
