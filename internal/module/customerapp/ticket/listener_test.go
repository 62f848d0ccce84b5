package ticket

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type erroringTicketUseCase struct {
	err error
}

func (u erroringTicketUseCase) OnTicketEvent(ctx context.Context, message []byte) (TicketResponse, error) {
	return TicketResponse{}, u.err
}

func (u erroringTicketUseCase) Pay(ctx context.Context, req PayTicketRequest) (TicketResponse, error) {
	return TicketResponse{}, u.err
}

func (u erroringTicketUseCase) Use(ctx context.Context, req UseTicketRequest) (TicketResponse, error) {
	return TicketResponse{}, u.err
}

func (u erroringTicketUseCase) Refund(ctx context.Context, req RefundTicketRequest) (TicketResponse, error) {
	return TicketResponse{}, u.err
}

func (u erroringTicketUseCase) GetManyByOwnerRUT(ctx context.Context, ownerRUT int64) (GetManyTicketResponse, error) {
	return nil, u.err
}

func newListenerFixture() (*fixture, *EventListener) {
	f := newFixture()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return f, NewEventListener(logger, f.uc)
}

func TestListenerDropsUnrecoverableEvents(t *testing.T) {
	f, listener := newListenerFixture()

	// a payload that can never succeed must not come back for redelivery
	assert.NoError(t, listener.Handle(context.Background(), []byte(`not json`)))
	assert.NoError(t, listener.Handle(context.Background(), []byte(`{"id":"EXT1","price":100.0,"event":"Concert"}`)))
	assert.Empty(t, f.ticketRepo.tickets)

	require.NoError(t, listener.Handle(context.Background(), []byte(sampleEvent)))
	assert.Len(t, f.ticketRepo.tickets, 1)
}

func TestListenerPropagatesStoreFailures(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	storeErr := errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ticket's properties")
	listener := NewEventListener(logger, erroringTicketUseCase{err: storeErr})

	err := listener.Handle(context.Background(), []byte(sampleEvent))
	require.Error(t, err)
	assert.Equal(t, storeErr, err)
}
