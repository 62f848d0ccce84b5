package owner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/ticketera/tk-ticket/pkg/errors"
	publicMiddleware "github.com/ticketera/tk-ticket/pkg/middleware"
	"github.com/ticketera/tk-ticket/pkg/response"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type HTTPHandler struct {
	Validate     *validator.Validate
	OwnerUseCase OwnerUseCase
}

func InitHTTPHandler(router *mux.Router, validate *validator.Validate, ownerUseCase OwnerUseCase) {
	handler := &HTTPHandler{
		Validate:     validate,
		OwnerUseCase: ownerUseCase,
	}

	router.HandleFunc("/tk-ticket/v1/customerapp/owners", publicMiddleware.SetRouteChain(handler.Register)).Methods(http.MethodPost)
	router.HandleFunc("/tk-ticket/v1/customerapp/owners/login", publicMiddleware.SetRouteChain(handler.Login)).Methods(http.MethodPost)
}

func (handler HTTPHandler) validate(ctx context.Context, payload interface{}) error {
	err := handler.Validate.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	errorFields := err.(validator.ValidationErrors)

	errMessages := make([]string, len(errorFields))

	for k, errorField := range errorFields {
		errMessages[k] = fmt.Sprintf("invalid '%s' with value '%v'", errorField.Field(), errorField.Value())
	}

	errorMessage := strings.Join(errMessages, ", ")

	return fmt.Errorf(errorMessage)
}

func (handler HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := RegisterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.OwnerUseCase.Register(ctx, req)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}
	response.JSON(w, http.StatusCreated, response.RESTEnvelope{
		Status:  status.CREATED,
		Message: "owner has been successfully registered",
		Data:    resp,
		Meta:    nil,
	})
}

func (handler HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := LoginRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.OwnerUseCase.Login(ctx, req)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}
	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "owner has been successfully logged in",
		Data:    resp,
		Meta:    nil,
	})
}
