package ticket

type PayTicketRequest struct {
	TicketID     int64  `json:"ticket_id" validate:"required,gt=0"`
	RUT          int64  `json:"rut" validate:"required,gt=0"`
	PaymentToken string `json:"payment_token"`
}

type UseTicketRequest struct {
	TicketID int64 `json:"ticket_id" validate:"required,gt=0"`
	RUT      int64 `json:"rut" validate:"required,gt=0"`
}

type RefundTicketRequest struct {
	TicketID int64 `json:"ticket_id" validate:"required,gt=0"`
	RUT      int64 `json:"rut" validate:"required,gt=0"`
}

type GetManyTicketRequest struct {
	RUT int64 `validate:"required,gt=0"`
}
