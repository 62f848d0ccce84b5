package owner

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
	"golang.org/x/crypto/bcrypt"
)

type OwnerUseCase interface {
	Register(ctx context.Context, req RegisterRequest) (OwnerResponse, error)
	Login(ctx context.Context, req LoginRequest) (OwnerResponse, error)
}

type ownerUseCase struct {
	logger          *logrus.Logger
	timeout         time.Duration
	ownerRepository OwnerRepository
}

type OwnerUseCaseProperty struct {
	Logger          *logrus.Logger
	Timeout         time.Duration
	OwnerRepository OwnerRepository
}

func NewOwnerUseCase(props OwnerUseCaseProperty) OwnerUseCase {
	return &ownerUseCase{
		logger:          props.Logger,
		timeout:         props.Timeout,
		ownerRepository: props.OwnerRepository,
	}
}

func isNotFound(err error) bool {
	return errors.Destruct(err).HTTPStatusCode == http.StatusNotFound
}

// Register implements OwnerUseCase. An owner ingested as a placeholder is
// upgraded in place so the tickets collected under their rut while they were
// unregistered stay theirs.
func (u *ownerUseCase) Register(ctx context.Context, req RegisterRequest) (OwnerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.ownerRepository.BeginTx(ctx)
	if err != nil {
		return OwnerResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.ownerRepository.Rollback(ctx, tx)
		u.logger.WithContext(ctx).WithError(err).Error()
		return OwnerResponse{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while deriving owner's credential")
	}
	passwordHash := string(hash)

	now := time.Now()

	existing, err := u.ownerRepository.FindByRUT(ctx, req.RUT, tx)
	if err != nil && !isNotFound(err) {
		u.ownerRepository.Rollback(ctx, tx)
		return OwnerResponse{}, err
	}

	if err == nil {
		if !existing.IsPlaceholder() {
			u.ownerRepository.Rollback(ctx, tx)
			return OwnerResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "owner is already registered")
		}

		if err := u.ensureEmailFree(ctx, req.Email, req.RUT, tx); err != nil {
			u.ownerRepository.Rollback(ctx, tx)
			return OwnerResponse{}, err
		}

		existing.FullName = req.FullName
		existing.Email = &req.Email
		existing.PasswordHash = &passwordHash
		existing.UpdatedAt = now

		if err := u.ownerRepository.Update(ctx, req.RUT, existing, tx); err != nil {
			u.ownerRepository.Rollback(ctx, tx)
			return OwnerResponse{}, err
		}

		if err := u.ownerRepository.CommitTx(ctx, tx); err != nil {
			return OwnerResponse{}, err
		}

		resp := OwnerResponse{}
		resp.PopulateFromEntity(existing)

		return resp, nil
	}

	if err := u.ensureEmailFree(ctx, req.Email, req.RUT, tx); err != nil {
		u.ownerRepository.Rollback(ctx, tx)
		return OwnerResponse{}, err
	}

	o := Owner{
		RUT:          req.RUT,
		FullName:     req.FullName,
		Email:        &req.Email,
		PasswordHash: &passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := u.ownerRepository.Save(ctx, o, tx); err != nil {
		u.ownerRepository.Rollback(ctx, tx)
		return OwnerResponse{}, err
	}

	if err := u.ownerRepository.CommitTx(ctx, tx); err != nil {
		return OwnerResponse{}, err
	}

	resp := OwnerResponse{}
	resp.PopulateFromEntity(o)

	return resp, nil
}

// ensureEmailFree fails with a conflict when email already belongs to a
// different rut.
func (u *ownerUseCase) ensureEmailFree(ctx context.Context, email string, rut int64, tx *sql.Tx) error {
	other, err := u.ownerRepository.FindByEmail(ctx, email, tx)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	if other.RUT != rut {
		return errors.New(http.StatusConflict, status.CONFLICT, "email is already taken by another owner")
	}

	return nil
}

// Login implements OwnerUseCase. Placeholders carry no credential and can
// never log in.
func (u *ownerUseCase) Login(ctx context.Context, req LoginRequest) (OwnerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	o, err := u.ownerRepository.FindByEmail(ctx, req.Email, nil)
	if err != nil {
		if isNotFound(err) {
			return OwnerResponse{}, errors.New(http.StatusUnauthorized, status.UNAUTHORIZED, "invalid email or password")
		}
		return OwnerResponse{}, err
	}

	if o.PasswordHash == nil {
		return OwnerResponse{}, errors.New(http.StatusUnauthorized, status.UNAUTHORIZED, "invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*o.PasswordHash), []byte(req.Password)); err != nil {
		return OwnerResponse{}, errors.New(http.StatusUnauthorized, status.UNAUTHORIZED, "invalid email or password")
	}

	resp := OwnerResponse{}
	resp.PopulateFromEntity(o)

	return resp, nil
}
