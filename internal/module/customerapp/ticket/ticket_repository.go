package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type TicketRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	Save(ctx context.Context, t Ticket, tx *sql.Tx) (int64, error)
	FindByExternalID(ctx context.Context, externalID string, tx *sql.Tx) (Ticket, error)
	FindByIDAndOwnerRUT(ctx context.Context, ID int64, ownerRUT int64, tx *sql.Tx) (Ticket, error)
	FindManyByOwnerRUT(ctx context.Context, ownerRUT int64, tx *sql.Tx) ([]Ticket, error)
	UpdateStatus(ctx context.Context, ID int64, ticketStatus string, updatedAt time.Time, tx *sql.Tx) error
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolationCode
}

type ticketRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewTicketRepository(logger *logrus.Logger, db *sql.DB) TicketRepository {
	return &ticketRepository{
		logger: logger,
		db:     db,
	}
}

// BeginTx implements TicketRepository.
func (r *ticketRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to begin transaction")
	}

	return tx, nil
}

// CommitTx implements TicketRepository.
func (r *ticketRepository) CommitTx(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to commit transaction")
	}

	return nil
}

// Rollback implements TicketRepository.
func (r *ticketRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to rollback transaction")
	}

	return nil
}

// Save implements TicketRepository. The external id carries a unique
// constraint; a duplicate insert surfaces as a conflict so concurrent
// deliveries of the same message converge to a single row.
func (r *ticketRepository) Save(ctx context.Context, t Ticket, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO ticket
		(
			external_id, price, event_name, status, owner_rut, created_at, updated_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ticket's properties")
	}
	defer stmt.Close()

	var id int64
	err = stmt.QueryRowContext(ctx, t.ExternalID, t.Price, t.EventName, t.Status, t.OwnerRUT, t.CreatedAt, t.UpdatedAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket with external id '%s' already exists", t.ExternalID))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ticket's properties")
	}

	return id, nil
}

// FindByExternalID implements TicketRepository.
func (r *ticketRepository) FindByExternalID(ctx context.Context, externalID string, tx *sql.Tx) (Ticket, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT id, external_id, price, event_name, status, owner_rut, created_at, updated_at
		FROM ticket
		WHERE external_id = $1
		LIMIT 1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Ticket{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ticket's properties")
	}
	defer stmt.Close()

	return r.scanOne(ctx, stmt.QueryRowContext(ctx, externalID), fmt.Sprintf("ticket with external id '%s' is not found", externalID))
}

// FindByIDAndOwnerRUT implements TicketRepository. The lookup filters on
// both identifiers in one query: an existing ticket owned by someone else is
// indistinguishable from a missing one.
func (r *ticketRepository) FindByIDAndOwnerRUT(ctx context.Context, ID int64, ownerRUT int64, tx *sql.Tx) (Ticket, error) {
	var cmd sqlCommand = r.db

	query := `
		SELECT id, external_id, price, event_name, status, owner_rut, created_at, updated_at
		FROM ticket
		WHERE id = $1 AND owner_rut = $2
		LIMIT 1
	`

	if tx != nil {
		cmd = tx
		// a transactional read precedes a status transition; lock the row so
		// concurrent transitions observe each other
		query += `FOR UPDATE`
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Ticket{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ticket's properties")
	}
	defer stmt.Close()

	return r.scanOne(ctx, stmt.QueryRowContext(ctx, ID, ownerRUT), fmt.Sprintf("ticket with id '%d' is not found", ID))
}

// FindManyByOwnerRUT implements TicketRepository.
func (r *ticketRepository) FindManyByOwnerRUT(ctx context.Context, ownerRUT int64, tx *sql.Tx) ([]Ticket, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT id, external_id, price, event_name, status, owner_rut, created_at, updated_at
		FROM ticket
		WHERE owner_rut = $1
		ORDER BY id DESC
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, ownerRUT)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
	}

	defer rows.Close()

	var data = make([]Ticket, 0)

	for rows.Next() {
		var t Ticket

		if err := rows.Scan(&t.ID, &t.ExternalID, &t.Price, &t.EventName, &t.Status, &t.OwnerRUT, &t.CreatedAt, &t.UpdatedAt); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
		}

		data = append(data, t)
	}

	return data, nil
}

// UpdateStatus implements TicketRepository.
func (r *ticketRepository) UpdateStatus(ctx context.Context, ID int64, ticketStatus string, updatedAt time.Time, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket
		SET
			status = $1,
			updated_at = $2
		WHERE id = $3
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ticket's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, ticketStatus, updatedAt, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ticket's properties")
	}

	return nil
}

func (r *ticketRepository) scanOne(ctx context.Context, row *sql.Row, notFoundMessage string) (Ticket, error) {
	var data Ticket

	err := row.Scan(&data.ID, &data.ExternalID, &data.Price, &data.EventName, &data.Status, &data.OwnerRUT, &data.CreatedAt, &data.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, notFoundMessage)
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Ticket{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ticket's properties")
	}

	return data, nil
}
