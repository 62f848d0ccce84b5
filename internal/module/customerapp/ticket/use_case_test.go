package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/gateway"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/owner"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
	"github.com/ticketera/tk-ticket/pkg/validator"
)

type fakeOwnerRepository struct {
	owners map[int64]owner.Owner
}

func newFakeOwnerRepository() *fakeOwnerRepository {
	return &fakeOwnerRepository{owners: map[int64]owner.Owner{}}
}

func (f *fakeOwnerRepository) BeginTx(ctx context.Context) (*sql.Tx, error)   { return nil, nil }
func (f *fakeOwnerRepository) CommitTx(ctx context.Context, tx *sql.Tx) error { return nil }
func (f *fakeOwnerRepository) Rollback(ctx context.Context, tx *sql.Tx) error { return nil }

func (f *fakeOwnerRepository) Save(ctx context.Context, o owner.Owner, tx *sql.Tx) error {
	if _, ok := f.owners[o.RUT]; ok {
		return errors.New(http.StatusConflict, status.CONFLICT, "owner already exists")
	}
	f.owners[o.RUT] = o
	return nil
}

func (f *fakeOwnerRepository) FindByRUT(ctx context.Context, rut int64, tx *sql.Tx) (owner.Owner, error) {
	o, ok := f.owners[rut]
	if !ok {
		return owner.Owner{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "owner is not found")
	}
	return o, nil
}

func (f *fakeOwnerRepository) FindByEmail(ctx context.Context, email string, tx *sql.Tx) (owner.Owner, error) {
	for _, o := range f.owners {
		if o.Email != nil && *o.Email == email {
			return o, nil
		}
	}
	return owner.Owner{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "owner is not found")
}

func (f *fakeOwnerRepository) Update(ctx context.Context, rut int64, o owner.Owner, tx *sql.Tx) error {
	f.owners[rut] = o
	return nil
}

type fakeTicketRepository struct {
	nextID  int64
	tickets map[int64]Ticket
}

func newFakeTicketRepository() *fakeTicketRepository {
	return &fakeTicketRepository{tickets: map[int64]Ticket{}}
}

func (f *fakeTicketRepository) BeginTx(ctx context.Context) (*sql.Tx, error)   { return nil, nil }
func (f *fakeTicketRepository) CommitTx(ctx context.Context, tx *sql.Tx) error { return nil }
func (f *fakeTicketRepository) Rollback(ctx context.Context, tx *sql.Tx) error { return nil }

func (f *fakeTicketRepository) Save(ctx context.Context, t Ticket, tx *sql.Tx) (int64, error) {
	for _, existing := range f.tickets {
		if existing.ExternalID == t.ExternalID {
			return 0, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket with external id '%s' already exists", t.ExternalID))
		}
	}
	f.nextID++
	t.ID = f.nextID
	f.tickets[t.ID] = t
	return t.ID, nil
}

func (f *fakeTicketRepository) FindByExternalID(ctx context.Context, externalID string, tx *sql.Tx) (Ticket, error) {
	for _, t := range f.tickets {
		if t.ExternalID == externalID {
			return t, nil
		}
	}
	return Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "ticket is not found")
}

func (f *fakeTicketRepository) FindByIDAndOwnerRUT(ctx context.Context, ID int64, ownerRUT int64, tx *sql.Tx) (Ticket, error) {
	t, ok := f.tickets[ID]
	if !ok || t.OwnerRUT != ownerRUT {
		return Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "ticket is not found")
	}
	return t, nil
}

func (f *fakeTicketRepository) FindManyByOwnerRUT(ctx context.Context, ownerRUT int64, tx *sql.Tx) ([]Ticket, error) {
	var out []Ticket
	for _, t := range f.tickets {
		if t.OwnerRUT == ownerRUT {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepository) UpdateStatus(ctx context.Context, ID int64, ticketStatus string, updatedAt time.Time, tx *sql.Tx) error {
	t, ok := f.tickets[ID]
	if !ok {
		return errors.New(http.StatusNotFound, status.NOT_FOUND, "ticket is not found")
	}
	t.Status = ticketStatus
	t.UpdatedAt = updatedAt
	f.tickets[ID] = t
	return nil
}

type fakePaymentRepository struct {
	nextID   int64
	payments map[int64]Payment
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{payments: map[int64]Payment{}}
}

func (f *fakePaymentRepository) Save(ctx context.Context, p Payment, tx *sql.Tx) (int64, error) {
	for _, existing := range f.payments {
		if existing.TicketID == p.TicketID {
			return 0, errors.New(http.StatusConflict, status.CONFLICT, "payment already exists")
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.payments[p.ID] = p
	return p.ID, nil
}

func (f *fakePaymentRepository) FindByTicketID(ctx context.Context, ticketID int64, tx *sql.Tx) (Payment, error) {
	for _, p := range f.payments {
		if p.TicketID == ticketID {
			return p, nil
		}
	}
	return Payment{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "payment is not found")
}

type stubPaymentGateway struct {
	chargeApproved bool
	refundApproved bool
	chargeCalls    int
	refundCalls    int
}

func (s *stubPaymentGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResponse, error) {
	s.chargeCalls++
	return gateway.ChargeResponse{TransactionID: "tx-1", Approved: s.chargeApproved}, nil
}

func (s *stubPaymentGateway) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResponse, error) {
	s.refundCalls++
	return gateway.RefundResponse{Approved: s.refundApproved}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingNotifier) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixture struct {
	ownerRepo   *fakeOwnerRepository
	ticketRepo  *fakeTicketRepository
	paymentRepo *fakePaymentRepository
	gw          *stubPaymentGateway
	notifier    *recordingNotifier
	uc          TicketUseCase
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		ownerRepo:   newFakeOwnerRepository(),
		ticketRepo:  newFakeTicketRepository(),
		paymentRepo: newFakePaymentRepository(),
		gw:          &stubPaymentGateway{chargeApproved: true, refundApproved: true},
		notifier:    &recordingNotifier{},
	}

	f.uc = NewTicketUseCase(TicketUseCaseProperty{
		Logger:            logger,
		Timeout:           time.Second,
		Validate:          validator.Get(),
		OwnerRepository:   f.ownerRepo,
		TicketRepository:  f.ticketRepo,
		PaymentRepository: f.paymentRepo,
		PaymentGateway:    f.gw,
		Notifier:          f.notifier,
	})

	return f
}

const sampleEvent = `{"id":"EXT1","price":100.0,"event":"Concert","rut":555}`

func TestOnTicketEventIsIdempotent(t *testing.T) {
	f := newFixture()

	first, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		again, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Len(t, f.ticketRepo.tickets, 1)
}

func TestOnTicketEventCreatesPlaceholderOwner(t *testing.T) {
	f := newFixture()

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	assert.Equal(t, "EXT1", resp.ExternalID)
	assert.Equal(t, StatusPendingPayment, resp.Status)
	assert.Equal(t, int64(555), resp.OwnerRUT)

	o, ok := f.ownerRepo.owners[555]
	require.True(t, ok)
	assert.True(t, o.IsPlaceholder())
	assert.Equal(t, owner.PendingFullName, o.FullName)
}

func TestOnTicketEventRejectsMissingOwner(t *testing.T) {
	f := newFixture()

	_, err := f.uc.OnTicketEvent(context.Background(), []byte(`{"id":"EXT1","price":100.0,"event":"Concert"}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, f.ticketRepo.tickets)
	assert.Empty(t, f.ownerRepo.owners)
}

func TestOnTicketEventRejectsMalformedPayload(t *testing.T) {
	f := newFixture()

	_, err := f.uc.OnTicketEvent(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, errors.Destruct(err).HTTPStatusCode)
}

func TestPayTransitionsAndRecordsPayment(t *testing.T) {
	f := newFixture()

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	paid, err := f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Len(t, f.paymentRepo.payments, 1)
	assert.Equal(t, []string{EventTicketPaid}, f.notifier.recorded())

	// a second payment attempt must fail without touching the ticket
	_, err = f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Len(t, f.paymentRepo.payments, 1)
}

func TestPayDeclinedLeavesTicketUntouched(t *testing.T) {
	f := newFixture()
	f.gw.chargeApproved = false

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	_, err = f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.Error(t, err)

	stored := f.ticketRepo.tickets[resp.ID]
	assert.Equal(t, StatusPendingPayment, stored.Status)
	assert.Empty(t, f.paymentRepo.payments)
	assert.Empty(t, f.notifier.recorded())
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture()

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	// another owner can never transition this ticket, whatever its status
	for _, op := range []func() error{
		func() error { _, err := f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 777}); return err },
		func() error { _, err := f.uc.Use(context.Background(), UseTicketRequest{TicketID: resp.ID, RUT: 777}); return err },
		func() error {
			_, err := f.uc.Refund(context.Background(), RefundTicketRequest{TicketID: resp.ID, RUT: 777})
			return err
		},
	} {
		err := op()
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, errors.Destruct(err).HTTPStatusCode)
	}

	assert.Equal(t, StatusPendingPayment, f.ticketRepo.tickets[resp.ID].Status)
	assert.Zero(t, f.gw.chargeCalls)
}

func TestUseRequiresPaidStatus(t *testing.T) {
	f := newFixture()

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	_, err = f.uc.Use(context.Background(), UseTicketRequest{TicketID: resp.ID, RUT: 555})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Equal(t, StatusPendingPayment, f.ticketRepo.tickets[resp.ID].Status)

	_, err = f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)

	used, err := f.uc.Use(context.Background(), UseTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)
	assert.Equal(t, StatusUsed, used.Status)

	// USED is terminal
	_, err = f.uc.Use(context.Background(), UseTicketRequest{TicketID: resp.ID, RUT: 555})
	require.Error(t, err)
}

func TestRefundRequiresPayment(t *testing.T) {
	f := newFixture()

	// a PAID ticket with no payment row cannot be refunded
	now := time.Now()
	f.ticketRepo.nextID++
	f.ticketRepo.tickets[f.ticketRepo.nextID] = Ticket{
		ID: f.ticketRepo.nextID, ExternalID: "EXT9", Price: 50, EventName: "Teatro",
		Status: StatusPaid, OwnerRUT: 555, CreatedAt: now, UpdatedAt: now,
	}

	_, err := f.uc.Refund(context.Background(), RefundTicketRequest{TicketID: f.ticketRepo.nextID, RUT: 555})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Zero(t, f.gw.refundCalls)
}

func TestRefundDeclinedLeavesTicketPaid(t *testing.T) {
	f := newFixture()
	f.gw.refundApproved = false

	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)

	_, err = f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)

	_, err = f.uc.Refund(context.Background(), RefundTicketRequest{TicketID: resp.ID, RUT: 555})
	require.Error(t, err)
	assert.Equal(t, StatusPaid, f.ticketRepo.tickets[resp.ID].Status)
	assert.Equal(t, []string{EventTicketPaid}, f.notifier.recorded())
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture()

	ownerLogger := logrus.New()
	ownerLogger.SetOutput(io.Discard)

	ownerUseCase := owner.NewOwnerUseCase(owner.OwnerUseCaseProperty{
		Logger:          ownerLogger,
		Timeout:         time.Second,
		OwnerRepository: f.ownerRepo,
	})

	// ingestion creates the ticket and a placeholder owner
	resp, err := f.uc.OnTicketEvent(context.Background(), []byte(sampleEvent))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, resp.Status)
	assert.True(t, f.ownerRepo.owners[555].IsPlaceholder())

	// registration upgrades the placeholder and keeps the ticket
	_, err = ownerUseCase.Register(context.Background(), owner.RegisterRequest{
		RUT: 555, Email: "a@b.com", FullName: "Ana", Password: "secret-pw",
	})
	require.NoError(t, err)
	assert.False(t, f.ownerRepo.owners[555].IsPlaceholder())

	tickets, err := f.uc.GetManyByOwnerRUT(context.Background(), 555)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "EXT1", tickets[0].ExternalID)

	// pay, then refund
	paid, err := f.uc.Pay(context.Background(), PayTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	refunded, err := f.uc.Refund(context.Background(), RefundTicketRequest{TicketID: resp.ID, RUT: 555})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)

	// payment row survives the refund
	assert.Len(t, f.paymentRepo.payments, 1)
	assert.Equal(t, []string{EventTicketPaid, EventTicketRefunded}, f.notifier.recorded())
}
