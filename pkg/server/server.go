package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type HTTPServer struct {
	logger *logrus.Logger
	srv    *http.Server
}

func NewHTTPServer(logger *logrus.Logger, port int, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve blocks until the server is shut down.
func (s *HTTPServer) Serve() {
	s.logger.WithField("addr", s.srv.Addr).Info("http server listening")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithError(err).Error("http server stopped")
	}
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
