// Package ticket is the self-service surface over the booking engine. It
// adds the authorization shape the HTTP layer needs: customers act on their
// own tickets, admins may delete anyone's.
package ticket

import (
	"context"

	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/booking"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

type Ops struct {
	engine *booking.Engine
	users  domain.UserDirectory
}

func NewOps(engine *booking.Engine, users domain.UserDirectory) *Ops {
	return &Ops{engine: engine, users: users}
}

// CancelTicket cancels the requester's own booking. Ownership is enforced
// by the engine.
func (o *Ops) CancelTicket(ctx context.Context, bookingID, requesterID uuid.UUID) error {
	return o.engine.Cancel(ctx, bookingID, requesterID, false)
}

// UpdateTicket replaces the seat set on the requester's own booking.
func (o *Ops) UpdateTicket(ctx context.Context, bookingID, requesterID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, error) {
	return o.engine.Update(ctx, bookingID, requesterID, seatIDs)
}

// DeleteTicket removes a booking on behalf of any user. Only admins may do
// this, and a completed payment still blocks it.
func (o *Ops) DeleteTicket(ctx context.Context, bookingID, requesterID uuid.UUID) error {
	isAdmin, err := o.users.HasRole(ctx, requesterID, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !isAdmin {
		return domain.ErrForbidden
	}
	return o.engine.Cancel(ctx, bookingID, requesterID, true)
}
