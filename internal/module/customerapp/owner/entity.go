package owner

import "time"

// PendingFullName is the sentinel display name given to owners created as
// placeholders from a ticket reference, before the real person registers.
const PendingFullName = "Usuario Pendiente"

type Owner struct {
	RUT          int64
	FullName     string
	Email        *string
	PasswordHash *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPlaceholder reports whether the owner has not registered yet. A
// placeholder has no credential and can never log in.
func (o Owner) IsPlaceholder() bool {
	return o.PasswordHash == nil
}
