package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/ticketera/tk-ticket/pkg/errors"
	publicMiddleware "github.com/ticketera/tk-ticket/pkg/middleware"
	"github.com/ticketera/tk-ticket/pkg/response"
	"github.com/ticketera/tk-ticket/pkg/status"
)

type HTTPHandler struct {
	Validate      *validator.Validate
	TicketUseCase TicketUseCase
}

func InitHTTPHandler(router *mux.Router, validate *validator.Validate, ticketUseCase TicketUseCase) {
	handler := &HTTPHandler{
		Validate:      validate,
		TicketUseCase: ticketUseCase,
	}

	router.HandleFunc("/tk-ticket/v1/customerapp/owners/{rut}/tickets", publicMiddleware.SetRouteChain(handler.GetManyTicket)).Methods(http.MethodGet)
	router.HandleFunc("/tk-ticket/v1/customerapp/tickets/{id}/pay", publicMiddleware.SetRouteChain(handler.Pay)).Methods(http.MethodPost)
	router.HandleFunc("/tk-ticket/v1/customerapp/tickets/{id}/use", publicMiddleware.SetRouteChain(handler.Use)).Methods(http.MethodPost)
	router.HandleFunc("/tk-ticket/v1/customerapp/tickets/{id}/refund", publicMiddleware.SetRouteChain(handler.Refund)).Methods(http.MethodPost)
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

func (handler HTTPHandler) GetManyTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rut, _ := strconv.ParseInt(mux.Vars(r)["rut"], 10, 64)

	req := GetManyTicketRequest{RUT: rut}
	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.TicketUseCase.GetManyByOwnerRUT(ctx, req.RUT)
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
		Message: "list of owner's tickets",
		Data:    resp,
		Meta:    nil,
	})
}

func (handler HTTPHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := PayTicketRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}
	req.TicketID, _ = strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.TicketUseCase.Pay(ctx, req)
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
		Message: "ticket has been successfully paid",
		Data:    resp,
		Meta:    nil,
	})
}

func (handler HTTPHandler) Use(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := UseTicketRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}
	req.TicketID, _ = strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.TicketUseCase.Use(ctx, req)
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
		Message: "ticket has been successfully used",
		Data:    resp,
		Meta:    nil,
	})
}

func (handler HTTPHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := RefundTicketRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}
	req.TicketID, _ = strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.TicketUseCase.Refund(ctx, req)
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
		Message: "ticket has been successfully refunded",
		Data:    resp,
		Meta:    nil,
	})
}
