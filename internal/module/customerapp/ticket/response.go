package ticket

import "time"

type GetManyTicketResponse []TicketResponse

type TicketResponse struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Price      float64   `json:"price"`
	EventName  string    `json:"event_name"`
	Status     string    `json:"status"`
	OwnerRUT   int64     `json:"owner_rut"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *TicketResponse) PopulateFromEntity(t Ticket) {
	r.ID = t.ID
	r.ExternalID = t.ExternalID
	r.Price = t.Price
	r.EventName = t.EventName
	r.Status = t.Status
	r.OwnerRUT = t.OwnerRUT
	r.CreatedAt = t.CreatedAt
	r.UpdatedAt = t.UpdatedAt
}
