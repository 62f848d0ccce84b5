package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/gateway"
	"github.com/ticketera/tk-ticket/internal/module/customerapp/owner"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/notifier"
	"github.com/ticketera/tk-ticket/pkg/status"
)

const defaultPaymentToken = "dummy_token"

type TicketUseCase interface {
	OnTicketEvent(ctx context.Context, message []byte) (TicketResponse, error)
	Pay(ctx context.Context, req PayTicketRequest) (TicketResponse, error)
	Use(ctx context.Context, req UseTicketRequest) (TicketResponse, error)
	Refund(ctx context.Context, req RefundTicketRequest) (TicketResponse, error)
	GetManyByOwnerRUT(ctx context.Context, ownerRUT int64) (GetManyTicketResponse, error)
}

type ticketUseCase struct {
	logger            *logrus.Logger
	timeout           time.Duration
	validate          *validator.Validate
	ownerRepository   owner.OwnerRepository
	ticketRepository  TicketRepository
	paymentRepository PaymentRepository
	paymentGateway    gateway.PaymentGatewayRepository
	notifier          notifier.Client
}

type TicketUseCaseProperty struct {
	Logger            *logrus.Logger
	Timeout           time.Duration
	Validate          *validator.Validate
	OwnerRepository   owner.OwnerRepository
	TicketRepository  TicketRepository
	PaymentRepository PaymentRepository
	PaymentGateway    gateway.PaymentGatewayRepository
	Notifier          notifier.Client
}

func NewTicketUseCase(props TicketUseCaseProperty) TicketUseCase {
	return &ticketUseCase{
		logger:            props.Logger,
		timeout:           props.Timeout,
		validate:          props.Validate,
		ownerRepository:   props.OwnerRepository,
		ticketRepository:  props.TicketRepository,
		paymentRepository: props.PaymentRepository,
		paymentGateway:    props.PaymentGateway,
		notifier:          props.Notifier,
	}
}

func isNotFound(err error) bool {
	return errors.Destruct(err).HTTPStatusCode == http.StatusNotFound
}

func isConflict(err error) bool {
	return errors.Destruct(err).HTTPStatusCode == http.StatusConflict
}

// OnTicketEvent implements TicketUseCase. Redelivery of an already ingested
// message returns the existing ticket unchanged; duplicate-create races are
// resolved through the store's unique constraints, so no transaction is
// needed here.
func (u *ticketUseCase) OnTicketEvent(ctx context.Context, message []byte) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var e TicketEvent
	if err := json.Unmarshal(message, &e); err != nil {
		return TicketResponse{}, errors.New(http.StatusUnprocessableEntity, status.UNPROCESSABLE_ENTITY, fmt.Sprintf("malformed ticket event: %s", err.Error()))
	}

	if err := u.validate.StructCtx(ctx, e); err != nil {
		errorFields := err.(validator.ValidationErrors)
		errMessages := make([]string, len(errorFields))
		for k, errorField := range errorFields {
			errMessages[k] = fmt.Sprintf("invalid '%s' with value '%v'", errorField.Field(), errorField.Value())
		}

		return TicketResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, strings.Join(errMessages, ", "))
	}

	if _, err := u.resolveOwner(ctx, e.RUT); err != nil {
		return TicketResponse{}, err
	}

	existing, err := u.ticketRepository.FindByExternalID(ctx, e.ID, nil)
	if err == nil {
		resp := TicketResponse{}
		resp.PopulateFromEntity(existing)
		return resp, nil
	}
	if !isNotFound(err) {
		return TicketResponse{}, err
	}

	now := time.Now()
	t := Ticket{
		ExternalID: e.ID,
		Price:      e.Price,
		EventName:  e.Event,
		Status:     StatusPendingPayment,
		OwnerRUT:   e.RUT,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, err := u.ticketRepository.Save(ctx, t, nil)
	if err != nil {
		if isConflict(err) {
			// lost the create race against a concurrent delivery
			existing, ferr := u.ticketRepository.FindByExternalID(ctx, e.ID, nil)
			if ferr != nil {
				return TicketResponse{}, ferr
			}

			resp := TicketResponse{}
			resp.PopulateFromEntity(existing)
			return resp, nil
		}
		return TicketResponse{}, err
	}
	t.ID = id

	u.logger.WithContext(ctx).WithFields(logrus.Fields{
		"externalId": t.ExternalID,
		"ownerRut":   t.OwnerRUT,
	}).Info("ticket ingested")

	resp := TicketResponse{}
	resp.PopulateFromEntity(t)

	return resp, nil
}

// resolveOwner returns the owner for rut, creating a placeholder when none
// exists yet. A concurrent placeholder create converges on the existing row.
func (u *ticketUseCase) resolveOwner(ctx context.Context, rut int64) (owner.Owner, error) {
	o, err := u.ownerRepository.FindByRUT(ctx, rut, nil)
	if err == nil {
		return o, nil
	}
	if !isNotFound(err) {
		return owner.Owner{}, err
	}

	now := time.Now()
	o = owner.Owner{
		RUT:       rut,
		FullName:  owner.PendingFullName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.ownerRepository.Save(ctx, o, nil); err != nil {
		if isConflict(err) {
			return u.ownerRepository.FindByRUT(ctx, rut, nil)
		}
		return owner.Owner{}, err
	}

	u.logger.WithContext(ctx).WithField("rut", rut).Info("placeholder owner created")

	return o, nil
}

// Pay implements TicketUseCase.
func (u *ticketUseCase) Pay(ctx context.Context, req PayTicketRequest) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.ticketRepository.BeginTx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByIDAndOwnerRUT(ctx, req.TicketID, req.RUT, tx)
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if t.Status != StatusPendingPayment {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "ticket is not awaiting payment")
	}

	token := req.PaymentToken
	if token == "" {
		token = defaultPaymentToken
	}

	chargeResp, err := u.paymentGateway.Charge(ctx, gateway.ChargeRequest{
		Amount: t.Price,
		Token:  token,
	})
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if !chargeResp.Approved {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "payment capture was declined")
	}

	now := time.Now()

	if err := u.ticketRepository.UpdateStatus(ctx, t.ID, StatusPaid, now, tx); err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	p := Payment{
		Amount:   t.Price,
		PaidAt:   now,
		Method:   "credit_card",
		TicketID: t.ID,
	}

	if _, err := u.paymentRepository.Save(ctx, p, tx); err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if err := u.ticketRepository.CommitTx(ctx, tx); err != nil {
		return TicketResponse{}, err
	}

	t.Status = StatusPaid
	t.UpdatedAt = now

	resp := TicketResponse{}
	resp.PopulateFromEntity(t)

	u.notifier.Notify(EventTicketPaid, resp)

	return resp, nil
}

// Use implements TicketUseCase.
func (u *ticketUseCase) Use(ctx context.Context, req UseTicketRequest) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.ticketRepository.BeginTx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByIDAndOwnerRUT(ctx, req.TicketID, req.RUT, tx)
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if t.Status != StatusPaid {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "only a paid ticket can be used")
	}

	now := time.Now()

	if err := u.ticketRepository.UpdateStatus(ctx, t.ID, StatusUsed, now, tx); err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if err := u.ticketRepository.CommitTx(ctx, tx); err != nil {
		return TicketResponse{}, err
	}

	t.Status = StatusUsed
	t.UpdatedAt = now

	resp := TicketResponse{}
	resp.PopulateFromEntity(t)

	return resp, nil
}

// Refund implements TicketUseCase.
func (u *ticketUseCase) Refund(ctx context.Context, req RefundTicketRequest) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.ticketRepository.BeginTx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByIDAndOwnerRUT(ctx, req.TicketID, req.RUT, tx)
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if t.Status != StatusPaid {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "only a paid ticket can be refunded")
	}

	p, err := u.paymentRepository.FindByTicketID(ctx, t.ID, tx)
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		if isNotFound(err) {
			return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "ticket has no payment to refund")
		}
		return TicketResponse{}, err
	}

	refundResp, err := u.paymentGateway.Refund(ctx, gateway.RefundRequest{PaymentID: p.ID})
	if err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if !refundResp.Approved {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "refund was declined")
	}

	now := time.Now()

	if err := u.ticketRepository.UpdateStatus(ctx, t.ID, StatusRefunded, now, tx); err != nil {
		u.ticketRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if err := u.ticketRepository.CommitTx(ctx, tx); err != nil {
		return TicketResponse{}, err
	}

	t.Status = StatusRefunded
	t.UpdatedAt = now

	resp := TicketResponse{}
	resp.PopulateFromEntity(t)

	u.notifier.Notify(EventTicketRefunded, resp)

	return resp, nil
}

// GetManyByOwnerRUT implements TicketUseCase.
func (u *ticketUseCase) GetManyByOwnerRUT(ctx context.Context, ownerRUT int64) (GetManyTicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tickets, err := u.ticketRepository.FindManyByOwnerRUT(ctx, ownerRUT, nil)
	if err != nil {
		return nil, err
	}

	resp := make(GetManyTicketResponse, len(tickets))
	for k, t := range tickets {
		r := TicketResponse{}
		r.PopulateFromEntity(t)
		resp[k] = r
	}

	return resp, nil
}
