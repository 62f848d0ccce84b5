package amqp

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/stream"
)

// Subscriber is the queue-subscription adapter. It declares the configured
// durable queues and consumes them with manual acknowledgements: a message
// is acked only after the handler returns nil, so a crash before that point
// results in redelivery.
type Subscriber struct {
	logger        *logrus.Logger
	url           string
	queues        []string
	retryInterval time.Duration
}

func NewSubscriber(logger *logrus.Logger, url string, queues []string, retryInterval time.Duration) *Subscriber {
	return &Subscriber{
		logger:        logger,
		url:           url,
		queues:        queues,
		retryInterval: retryInterval,
	}
}

// Listen implements stream.Adapter.
func (s *Subscriber) Listen(ctx context.Context, handler stream.Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.WithField("url", s.url).Info("connecting to broker")

		conn, err := amqp.Dial(s.url)
		if err != nil {
			s.logger.WithError(err).Warn("broker connection failed, retrying")
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		s.logger.Info("connected to broker")

		err = s.consume(ctx, conn, handler)
		conn.Close()
		if err != nil {
			return err
		}

		s.logger.Warn("broker connection lost, retrying")
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
}

// consume runs until the connection drops (nil return) or ctx is cancelled.
func (s *Subscriber) consume(ctx context.Context, conn *amqp.Connection, handler stream.Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		s.logger.WithError(err).Warn("opening channel failed")
		return nil
	}
	defer ch.Close()

	var wg sync.WaitGroup

	for _, queue := range s.queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			s.logger.WithField("queue", queue).WithError(err).Warn("queue declaration failed")
			return nil
		}

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			s.logger.WithField("queue", queue).WithError(err).Warn("consume registration failed")
			return nil
		}

		wg.Add(1)
		go func(queue string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range deliveries {
				s.handle(ctx, queue, d, handler)
			}
		}(queue, deliveries)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-ctx.Done():
		conn.Close()
		wg.Wait()
		return ctx.Err()
	case <-closed:
		wg.Wait()
		return nil
	}
}

func (s *Subscriber) handle(ctx context.Context, queue string, d amqp.Delivery, handler stream.Handler) {
	if err := handler(ctx, d.Body); err != nil {
		s.logger.WithContext(ctx).WithField("queue", queue).WithError(err).Error("message handler failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			s.logger.WithField("queue", queue).WithError(err).Warn("nack failed")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		s.logger.WithField("queue", queue).WithError(err).Warn("ack failed")
	}
}

func (s *Subscriber) sleep(ctx context.Context) error {
	t := time.NewTimer(s.retryInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
