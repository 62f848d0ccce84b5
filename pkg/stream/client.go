package stream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the outbound persistent adapter: it dials a fixed remote
// endpoint and reconnects forever with a fixed interval on any failure.
type Client struct {
	logger        *logrus.Logger
	addr          string
	retryInterval time.Duration
}

func NewClient(logger *logrus.Logger, host string, port int, retryInterval time.Duration) *Client {
	return &Client{
		logger:        logger,
		addr:          fmt.Sprintf("%s:%d", host, port),
		retryInterval: retryInterval,
	}
}

// Listen implements Adapter.
func (c *Client) Listen(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.logger.WithField("addr", c.addr).Info("connecting to middleware")

		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			c.logger.WithField("addr", c.addr).WithError(err).Warn("middleware connection failed, retrying")
			if err := sleep(ctx, c.retryInterval); err != nil {
				return err
			}
			continue
		}

		c.logger.WithField("addr", c.addr).Info("connected to middleware")

		if err := consume(ctx, conn, handler, c.logger); err != nil {
			conn.Close()
			return err
		}
		conn.Close()

		c.logger.WithField("addr", c.addr).Warn("middleware connection lost, retrying")
		if err := sleep(ctx, c.retryInterval); err != nil {
			return err
		}
	}
}

// consume reads conn until it fails or ctx is cancelled, feeding every frame
// to the handler. It returns a non-nil error only on cancellation; handler
// failures are logged and do not tear down the connection.
func consume(ctx context.Context, conn net.Conn, handler Handler, logger *logrus.Logger) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	decoder := NewDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Decode(buf[:n]) {
				if herr := handler(ctx, frame); herr != nil {
					logger.WithContext(ctx).WithError(herr).Error("message handler failed")
				}
			}
		}
		if err != nil {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
