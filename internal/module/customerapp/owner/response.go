package owner

import "time"

type OwnerResponse struct {
	RUT       int64     `json:"rut"`
	FullName  string    `json:"full_name"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *OwnerResponse) PopulateFromEntity(o Owner) {
	r.RUT = o.RUT
	r.FullName = o.FullName
	r.Email = o.Email
	r.CreatedAt = o.CreatedAt
	r.UpdatedAt = o.UpdatedAt
}
