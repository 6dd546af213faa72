package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Start binds the listener synchronously and serves in the background, so
// a taken port is reported to the caller.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", s.srv.Addr)
	}
	logging.Info(ctx, "http server listening", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(context.Background(), "http server stopped", slog.Any("err", errs.Loggable(err)))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errs.Wrap(s.srv.Shutdown(ctx), "shutdown http server")
}
