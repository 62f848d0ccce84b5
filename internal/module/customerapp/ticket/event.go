package ticket

const (
	EventTicketPaid     = "TICKET_PAID"
	EventTicketRefunded = "TICKET_REFUNDED"
)

// TicketEvent is one inbound message from the external ticket source. RUT
// identifies the owner; anonymous tickets are rejected.
type TicketEvent struct {
	ID    string  `json:"id" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Event string  `json:"event"`
	RUT   int64   `json:"rut" validate:"required,gt=0"`
}
