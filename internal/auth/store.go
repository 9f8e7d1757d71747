package auth

import (
	"context"
	"time"
)

// UserStore is the persistence contract consumed by the auth flows.
// FindByEmail and GetByID surface httpx.ErrNotFound for missing rows;
// Create surfaces httpx.ErrDuplicate on an email uniqueness violation.
// Update is conditional on the previously observed UpdatedAt so that two
// concurrent check-then-set sequences cannot both win; a lost race
// surfaces httpx.ErrDuplicate.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User, observedAt time.Time) error
}

// Notifier delivers flow-token emails out of band. Implementations are
// best effort; the auth flows log failures instead of propagating them.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}
