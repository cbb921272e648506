// Package ledger answers which seats of a showtime are currently held. A
// seat is held while some booking claims it with derived status BOOKED or
// PENDING; a booking with no payments yet counts as PENDING.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

type SeatLedger struct {
	repo *pg.Repository
}

func NewSeatLedger(repo *pg.Repository) *SeatLedger {
	return &SeatLedger{repo: repo}
}

// HeldSeats must run inside the same transaction as the write that acts on
// the result; the booking rows it reads are locked for exactly that reason.
// Status comes from domain.DeriveBookingStatus and nowhere else.
func (l *SeatLedger) HeldSeats(ctx context.Context, tx pgx.Tx, showtimeID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	bookings, err := l.repo.BookingsForShowtime(ctx, tx, showtimeID)
	if err != nil {
		return nil, err
	}
	held := make(map[uuid.UUID]uuid.UUID)
	for _, sb := range bookings {
		if !domain.DeriveBookingStatus(sb.Payments).Held() {
			continue
		}
		for _, seatID := range sb.SeatIDs {
			held[seatID] = sb.Booking.ID
		}
	}
	return held, nil
}
