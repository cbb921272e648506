package domain

import (
	"context"

	"github.com/google/uuid"
)

// CatalogProvider serves showtime and seat reference data. The booking core
// only ever reads from it.
type CatalogProvider interface {
	// GetShowtime returns ErrShowtimeNotFound when the id is unknown.
	GetShowtime(ctx context.Context, id uuid.UUID) (*Showtime, error)
	// GetSeats returns the seats it knows about; callers diff the result
	// against the request to report missing IDs.
	GetSeats(ctx context.Context, ids []uuid.UUID) ([]Seat, error)
}

// UserDirectory answers ownership and role questions for requesters.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	HasRole(ctx context.Context, id uuid.UUID, role string) (bool, error)
}

// Notification event kinds published through the outbox. Delivery is
// fire-and-forget; the core never blocks on it.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentFailed    = "payment.failed"
)
