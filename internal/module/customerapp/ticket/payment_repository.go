package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type PaymentRepository interface {
	Save(ctx context.Context, p Payment, tx *sql.Tx) (int64, error)
	FindByTicketID(ctx context.Context, ticketID int64, tx *sql.Tx) (Payment, error)
}

type paymentRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewPaymentRepository(logger *logrus.Logger, db *sql.DB) PaymentRepository {
	return &paymentRepository{
		logger: logger,
		db:     db,
	}
}

// Save implements PaymentRepository.
func (r *paymentRepository) Save(ctx context.Context, p Payment, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO payment
		(
			amount, paid_at, method, ticket_id
		)
		VALUES
		(
			$1, $2, $3, $4
		)
		RETURNING id
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving payment's properties")
	}
	defer stmt.Close()

	var id int64
	err = stmt.QueryRowContext(ctx, p.Amount, p.PaidAt, p.Method, p.TicketID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("payment for ticket '%d' already exists", p.TicketID))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving payment's properties")
	}

	return id, nil
}

// FindByTicketID implements PaymentRepository.
func (r *paymentRepository) FindByTicketID(ctx context.Context, ticketID int64, tx *sql.Tx) (Payment, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT id, amount, paid_at, method, ticket_id
		FROM payment
		WHERE ticket_id = $1
		LIMIT 1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Payment{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payment's properties")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, ticketID)

	var data Payment

	err = row.Scan(&data.ID, &data.Amount, &data.PaidAt, &data.Method, &data.TicketID)
	if err != nil {
		if err == sql.ErrNoRows {
			return Payment{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("payment for ticket '%d' is not found", ticketID))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Payment{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payment's properties")
	}

	return data, nil
}
