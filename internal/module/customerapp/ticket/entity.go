package ticket

import "time"

const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusUsed           = "USED"
	StatusRefunded       = "REFUNDED"
)

type Ticket struct {
	ID         int64
	ExternalID string
	Price      float64
	EventName  string
	Status     string
	OwnerRUT   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payment exists only once a ticket reached PAID. It survives a refund as
// evidence of the original transaction.
type Payment struct {
	ID       int64
	Amount   float64
	PaidAt   time.Time
	Method   string
	TicketID int64
}
