package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ticketera/tk-ticket/pkg/errors"
	"github.com/ticketera/tk-ticket/pkg/status"
)

// PaymentGatewayRepository wraps the external payment capability. Both calls
// are synchronous and never retried here; a declined capture or refund is an
// Approved=false response, not an error.
type PaymentGatewayRepository interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
}

type paymentGatewayRepository struct {
	baseURL      string
	basicAuthKey string
	logger       *logrus.Logger
	hc           *http.Client
}

func NewPaymentGatewayRepository(baseURL string, basicAuthKey string, logger *logrus.Logger, hc *http.Client) PaymentGatewayRepository {
	return &paymentGatewayRepository{
		baseURL:      baseURL,
		basicAuthKey: basicAuthKey,
		logger:       logger,
		hc:           hc,
	}
}

// Charge implements PaymentGatewayRepository.
func (r *paymentGatewayRepository) Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error) {
	var resp ChargeResponse
	if err := r.post(ctx, "/v1/charge", req, &resp); err != nil {
		return ChargeResponse{}, err
	}

	return resp, nil
}

// Refund implements PaymentGatewayRepository.
func (r *paymentGatewayRepository) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	var resp RefundResponse
	if err := r.post(ctx, "/v1/refund", req, &resp); err != nil {
		return RefundResponse{}, err
	}

	return resp, nil
}

func (r *paymentGatewayRepository) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	reqBuff, _ := json.Marshal(payload)
	body := bytes.NewBuffer(reqBuff)
	url := fmt.Sprintf("%s%s", r.baseURL, path)

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while calling the payment gateway")
	}

	hr.Header.Add("Content-Type", "application/json")
	hr.Header.Add("Accept", "application/json")
	hr.Header.Add("Authorization", fmt.Sprintf("Basic %s", r.basicAuthKey))

	hresp, err := r.hc.Do(hr)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "an error occurred while calling the payment gateway")
	}

	defer hresp.Body.Close()

	respBody, err := io.ReadAll(hresp.Body)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "an error occurred while calling the payment gateway")
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		err := fmt.Errorf("payment gateway responded with status %d: %s", hresp.StatusCode, string(respBody))
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "an error occurred while calling the payment gateway")
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusBadGateway, status.BAD_GATEWAY, "an error occurred while calling the payment gateway")
	}

	return nil
}
