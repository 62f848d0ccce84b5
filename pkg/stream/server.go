package stream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Server is the inbound listening adapter: it accepts one connection at a
// time on a fixed port and loops back to accept the next one after the peer
// disconnects. Accept failures back off with a fixed interval.
type Server struct {
	logger        *logrus.Logger
	port          int
	retryInterval time.Duration
}

func NewServer(logger *logrus.Logger, port int, retryInterval time.Duration) *Server {
	return &Server{
		logger:        logger,
		port:          port,
		retryInterval: retryInterval,
	}
}

// Listen implements Adapter.
func (s *Server) Listen(ctx context.Context, handler Handler) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return err
	}
	defer ln.Close()

	// unblock Accept on cancellation
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.WithField("port", s.port).Info("listening for ticket connections")

	return s.serve(ctx, ln, handler)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, handler Handler) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			s.logger.WithError(err).Warn("accept failed, retrying")
			if err := sleep(ctx, s.retryInterval); err != nil {
				return err
			}
			continue
		}

		s.logger.WithField("peer", conn.RemoteAddr().String()).Info("peer connected")

		if err := consume(ctx, conn, handler, s.logger); err != nil {
			conn.Close()
			return err
		}
		conn.Close()

		s.logger.WithField("peer", conn.RemoteAddr().String()).Info("peer disconnected")
	}
}
