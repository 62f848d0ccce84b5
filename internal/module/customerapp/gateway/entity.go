package gateway

type ChargeRequest struct {
	Amount float64 `json:"amount"`
	Token  string  `json:"token"`
}

type ChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Approved      bool   `json:"approved"`
}

type RefundRequest struct {
	PaymentID int64 `json:"payment_id"`
}

type RefundResponse struct {
	Approved bool `json:"approved"`
}
