package main

import (
	"context"
	goerrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/config"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/gateway"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/owner"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/ticket"
	appamqp "github.com/ticketera/tk-ticket/pkg/amqp"
	"github.com/ticketera/tk-ticket/pkg/applogger"
	"github.com/ticketera/tk-ticket/pkg/middleware"
	"github.com/ticketera/tk-ticket/pkg/monitoring"
	"github.com/ticketera/tk-ticket/pkg/notifier"
	"github.com/ticketera/tk-ticket/pkg/postgresql"
	"github.com/ticketera/tk-ticket/pkg/server"
	"github.com/ticketera/tk-ticket/pkg/stream"
	"github.com/ticketera/tk-ticket/pkg/validator"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

var c *config.Config

func init() {
	c = config.Get()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := applogger.GetLogrus()

	mon := monitoring.NewOpenTelemetry(
		c.Application.Name,
		c.Application.Environment,
		c.Monitoring.OTLPEndpoint,
	)
	if c.Monitoring.Enabled {
		mon.Start(ctx)
		defer mon.Stop(context.Background())
	}

	validate := validator.Get()

	hc := http.DefaultClient

	psqldb := postgresql.GetDatabase()
	if err := psqldb.Ping(); err != nil {
		logger.WithContext(ctx).WithError(err).Error()
	}

	notify := notifier.New(logger, c.Notification.Host, c.Notification.Port, c.Notification.Timeout)

	ownerRepo := owner.NewOwnerRepository(logger, psqldb)
	ticketRepo := ticket.NewTicketRepository(logger, psqldb)
	paymentRepo := ticket.NewPaymentRepository(logger, psqldb)
	paymentGateway := gateway.NewPaymentGatewayRepository(c.Payment.BaseURL, c.Payment.BasicAuthKey, logger, hc)

	ownerUseCase := owner.NewOwnerUseCase(owner.OwnerUseCaseProperty{
		Logger:          logger,
		Timeout:         c.Application.Timeout,
		OwnerRepository: ownerRepo,
	})

	ticketUseCase := ticket.NewTicketUseCase(ticket.TicketUseCaseProperty{
		Logger:            logger,
		Timeout:           c.Application.Timeout,
		Validate:          validate,
		OwnerRepository:   ownerRepo,
		TicketRepository:  ticketRepo,
		PaymentRepository: paymentRepo,
		PaymentGateway:    paymentGateway,
		Notifier:          notify,
	})

	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware(c.Application.Name),
		middleware.HTTPResponseTraceInjection,
		middleware.NewHTTPRequestLogger(logger, c.Application.Debug, http.StatusInternalServerError).Middleware,
	)

	owner.InitHTTPHandler(router, validate, ownerUseCase)
	ticket.InitHTTPHandler(router, validate, ticketUseCase)

	srv := server.NewHTTPServer(logger, c.Application.Port, cors.AllowAll().Handler(router))
	go srv.Serve()

	listener := ticket.NewEventListener(logger, ticketUseCase)
	adapter := buildAdapter(logger)
	go func() {
		if err := adapter.Listen(ctx, listener.Handle); err != nil && !goerrors.Is(err, context.Canceled) {
			logger.WithError(err).Error("transport adapter stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error()
	}
}

// buildAdapter selects the transport variant feeding the ingestion pipeline.
// An unrecognized variant is the one unrecoverable configuration error.
func buildAdapter(logger *logrus.Logger) stream.Adapter {
	switch c.Middleware.Type {
	case "tcp_client":
		return stream.NewClient(logger, c.Middleware.Host, c.Middleware.Port, c.Middleware.RetryInterval)
	case "tcp_server":
		return stream.NewServer(logger, c.Middleware.ListenPort, c.Middleware.RetryInterval)
	case "amqp":
		queues := []string{c.AMQP.OrderQueue, c.AMQP.ReservationQueue}
		return appamqp.NewSubscriber(logger, c.AMQP.URL, queues, c.Middleware.RetryInterval)
	default:
		logger.Fatalf("unrecognized middleware type '%s'", c.Middleware.Type)
		return nil
	}
}
