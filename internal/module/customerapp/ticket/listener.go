package ticket

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
)

// EventListener bridges the transport adapters into the ingestion use case.
// Validation and conflict failures are dropped after logging: the message
// can never succeed, so redelivering it would only loop. Store failures are
// returned so queue-backed adapters redeliver.
type EventListener struct {
	logger        *logrus.Logger
	ticketUseCase TicketUseCase
}

func NewEventListener(logger *logrus.Logger, ticketUseCase TicketUseCase) *EventListener {
	return &EventListener{
		logger:        logger,
		ticketUseCase: ticketUseCase,
	}
}

func (l *EventListener) Handle(ctx context.Context, message []byte) error {
	_, err := l.ticketUseCase.OnTicketEvent(ctx, message)
	if err == nil {
		return nil
	}

	ae := errors.Destruct(err)
	if ae.HTTPStatusCode >= http.StatusInternalServerError {
		return err
	}

	l.logger.WithContext(ctx).WithFields(logrus.Fields{
		"status":  ae.Status,
		"message": string(message),
	}).Warn("dropping ticket event: " + ae.Message)

	return nil
}
