package owner

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketera/tk-ticket/pkg/errors"
)

func newMockedOwnerRepository(t *testing.T) (OwnerRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewOwnerRepository(logger, db), mock
}

func TestOwnerRepositorySave(t *testing.T) {
	repo, mock := newMockedOwnerRepository(t)

	now := time.Now()
	mock.ExpectPrepare("INSERT INTO owner").
		ExpectExec().
		WithArgs(int64(555), PendingFullName, sql.NullString{}, sql.NullString{}, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), Owner{RUT: 555, FullName: PendingFullName, CreatedAt: now, UpdatedAt: now}, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositorySaveDuplicateRUT(t *testing.T) {
	repo, mock := newMockedOwnerRepository(t)

	mock.ExpectPrepare("INSERT INTO owner").
		ExpectExec().
		WillReturnError(&pq.Error{Code: uniqueViolationCode, Constraint: "owner_pkey"})

	err := repo.Save(context.Background(), Owner{RUT: 555}, nil)
	require.Error(t, err)

	ae := errors.Destruct(err)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatusCode)
	assert.Equal(t, "owner with rut '555' already exists", ae.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositorySaveDuplicateEmail(t *testing.T) {
	repo, mock := newMockedOwnerRepository(t)

	mock.ExpectPrepare("INSERT INTO owner").
		ExpectExec().
		WillReturnError(&pq.Error{Code: uniqueViolationCode, Constraint: "owner_email_key"})

	email := "a@b.com"
	err := repo.Save(context.Background(), Owner{RUT: 555, Email: &email}, nil)
	require.Error(t, err)

	ae := errors.Destruct(err)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatusCode)
	assert.Equal(t, "email is already taken by another owner", ae.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositoryFindByRUTNotFound(t *testing.T) {
	repo, mock := newMockedOwnerRepository(t)

	mock.ExpectPrepare("SELECT (.+) FROM owner").
		ExpectQuery().
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByRUT(context.Background(), 999, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errors.Destruct(err).HTTPStatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
