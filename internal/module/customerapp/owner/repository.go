package owner

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type OwnerRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	Save(ctx context.Context, o Owner, tx *sql.Tx) error
	FindByRUT(ctx context.Context, rut int64, tx *sql.Tx) (Owner, error)
	FindByEmail(ctx context.Context, email string, tx *sql.Tx) (Owner, error)
	Update(ctx context.Context, rut int64, o Owner, tx *sql.Tx) error
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

type ownerRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewOwnerRepository(logger *logrus.Logger, db *sql.DB) OwnerRepository {
	return &ownerRepository{
		logger: logger,
		db:     db,
	}
}

// BeginTx implements OwnerRepository.
func (r *ownerRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to begin transaction")
	}

	return tx, nil
}

// CommitTx implements OwnerRepository.
func (r *ownerRepository) CommitTx(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to commit transaction")
	}

	return nil
}

// Rollback implements OwnerRepository.
func (r *ownerRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to rollback transaction")
	}

	return nil
}

// Save implements OwnerRepository.
func (r *ownerRepository) Save(ctx context.Context, o Owner, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO owner
		(
			rut, full_name, email, password_hash, created_at, updated_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving owner's properties")
	}
	defer stmt.Close()

	var email sql.NullString
	var passwordHash sql.NullString

	if o.Email != nil {
		email.String = *o.Email
		email.Valid = true
	}

	if o.PasswordHash != nil {
		passwordHash.String = *o.PasswordHash
		passwordHash.Valid = true
	}

	_, err = stmt.ExecContext(ctx, o.RUT, o.FullName, email, passwordHash, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// a rut and an email collision are both possible on insert
			if strings.Contains(string(err.(*pq.Error).Constraint), "email") {
				return errors.New(http.StatusConflict, status.CONFLICT, "email is already taken by another owner")
			}
			return errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("owner with rut '%d' already exists", o.RUT))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving owner's properties")
	}

	return nil
}

// FindByRUT implements OwnerRepository.
func (r *ownerRepository) FindByRUT(ctx context.Context, rut int64, tx *sql.Tx) (Owner, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT rut, full_name, email, password_hash, created_at, updated_at
		FROM owner
		WHERE rut = $1
		LIMIT 1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Owner{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting owner's properties")
	}
	defer stmt.Close()

	return r.scanOne(ctx, stmt.QueryRowContext(ctx, rut), fmt.Sprintf("owner with rut '%d' is not found", rut))
}

// FindByEmail implements OwnerRepository.
func (r *ownerRepository) FindByEmail(ctx context.Context, email string, tx *sql.Tx) (Owner, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT rut, full_name, email, password_hash, created_at, updated_at
		FROM owner
		WHERE email = $1
		LIMIT 1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Owner{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting owner's properties")
	}
	defer stmt.Close()

	return r.scanOne(ctx, stmt.QueryRowContext(ctx, email), fmt.Sprintf("owner with email '%s' is not found", email))
}

func (r *ownerRepository) scanOne(ctx context.Context, row *sql.Row, notFoundMessage string) (Owner, error) {
	var data Owner
	var email sql.NullString
	var passwordHash sql.NullString

	err := row.Scan(&data.RUT, &data.FullName, &email, &passwordHash, &data.CreatedAt, &data.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Owner{}, errors.New(http.StatusNotFound, status.NOT_FOUND, notFoundMessage)
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Owner{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting owner's properties")
	}

	if email.Valid {
		data.Email = &email.String
	}
	if passwordHash.Valid {
		data.PasswordHash = &passwordHash.String
	}

	return data, nil
}

// Update implements OwnerRepository.
func (r *ownerRepository) Update(ctx context.Context, rut int64, o Owner, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE owner
		SET
			full_name = $1,
			email = $2,
			password_hash = $3,
			updated_at = $4
		WHERE rut = $5
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating owner's properties")
	}
	defer stmt.Close()

	var email sql.NullString
	var passwordHash sql.NullString

	if o.Email != nil {
		email.String = *o.Email
		email.Valid = true
	}

	if o.PasswordHash != nil {
		passwordHash.String = *o.PasswordHash
		passwordHash.Valid = true
	}

	_, err = stmt.ExecContext(ctx, o.FullName, email, passwordHash, o.UpdatedAt, rut)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(http.StatusConflict, status.CONFLICT, "owner's email is already taken")
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating owner's properties")
	}

	return nil
}
