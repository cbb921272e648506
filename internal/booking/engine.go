// Package booking creates, updates and cancels bookings. Seat availability,
// pricing and persistence all happen inside one transaction per operation.
package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/ledger"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/rate"
)

type Engine struct {
	repo    *pg.Repository
	catalog domain.CatalogProvider
	rates   *rate.Table
	seats   *ledger.SeatLedger
	logger  observability.Logger
	now     func() time.Time
}

func NewEngine(repo *pg.Repository, catalog domain.CatalogProvider, rates *rate.Table, seats *ledger.SeatLedger, logger observability.Logger) *Engine {
	return &Engine{
		repo:    repo,
		catalog: catalog,
		rates:   rates,
		seats:   seats,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock fixes the engine's clock; tests use it to move showtimes into
// the past.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Create books the given seats for the user. The held-seat check and the
// assignment insert share one transaction, and the partial unique index on
// active assignments backstops the check under concurrency.
func (e *Engine) Create(ctx context.Context, userID, showtimeID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "empty seat list")
	}

	st, err := e.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if st.Started(e.now()) {
		return nil, domain.ErrShowtimeStarted
	}

	seats, err := e.loadSeats(ctx, st, seatIDs)
	if err != nil {
		return nil, err
	}

	total, err := e.priceSeats(ctx, st, seats)
	if err != nil {
		return nil, err
	}

	b := domain.NewBooking(userID, showtimeID, len(seats), total, e.now().UTC())
	err = e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		held, err := e.seats.HeldSeats(ctx, tx, showtimeID)
		if err != nil {
			return err
		}
		if conflicts := intersect(seatIDs, held, uuid.Nil); len(conflicts) > 0 {
			return &domain.SeatConflictError{SeatIDs: conflicts}
		}
		if err := e.repo.InsertBooking(ctx, tx, b); err != nil {
			return err
		}
		if err := e.repo.InsertSeatAssignments(ctx, tx, b.ID, showtimeID, seatIDs); err != nil {
			return err
		}
		return e.insertEvent(ctx, tx, domain.EventBookingCreated, b, seatIDs)
	})
	if err != nil {
		var conflict *domain.SeatConflictError
		if errors.As(err, &conflict) {
			observability.SeatConflicts.Inc()
		}
		return nil, err
	}

	observability.BookingsCreated.Inc()
	e.logger.WithField("booking_id", b.ID.String()).Info("booking created")
	return &b, nil
}

// Cancel deletes the booking and its assignments after cancelling every
// non-terminal payment. adminOverride skips the ownership check only; a
// completed payment still blocks the operation (seats of a paid booking can
// never be reassigned).
func (e *Engine) Cancel(ctx context.Context, bookingID, requesterID uuid.UUID, adminOverride bool) error {
	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != requesterID && !adminOverride {
		return domain.ErrNotOwner
	}

	st, err := e.catalog.GetShowtime(ctx, b.ShowtimeID)
	if err != nil {
		return err
	}

	err = e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		// Re-read under lock: a callback completing this booking's payment
		// may have committed since the checks above.
		if _, err := e.repo.GetBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}
		payments, err := e.repo.PaymentsForBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Status == domain.PaymentCompleted {
				return domain.ErrAlreadyPaid
			}
		}
		if st.Started(e.now()) {
			return domain.ErrShowtimeStarted
		}
		if err := e.repo.CancelNonTerminalPayments(ctx, tx, bookingID); err != nil {
			return err
		}
		if err := e.repo.DeleteSeatAssignments(ctx, tx, bookingID); err != nil {
			return err
		}
		if err := e.repo.DeleteBooking(ctx, tx, bookingID); err != nil {
			return err
		}
		return e.insertEvent(ctx, tx, domain.EventBookingCancelled, *b, nil)
	})
	return err
}

// Update replaces the booking's seat set and reprices it, under the same
// guards as Cancel. A PENDING payment blocks the update too: its issued
// artifact carries the old total, and repricing underneath it would let the
// stale amount settle. The booking's own current seats are excluded from the
// conflict set.
func (e *Engine) Update(ctx context.Context, bookingID, requesterID uuid.UUID, newSeatIDs []uuid.UUID) (*domain.Booking, error) {
	newSeatIDs = dedupe(newSeatIDs)
	if len(newSeatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "empty seat list")
	}

	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != requesterID {
		return nil, domain.ErrNotOwner
	}

	st, err := e.catalog.GetShowtime(ctx, b.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if st.Started(e.now()) {
		return nil, domain.ErrShowtimeStarted
	}

	seats, err := e.loadSeats(ctx, st, newSeatIDs)
	if err != nil {
		return nil, err
	}
	total, err := e.priceSeats(ctx, st, seats)
	if err != nil {
		return nil, err
	}

	err = e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := e.repo.GetBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}
		payments, err := e.repo.PaymentsForBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			switch p.Status {
			case domain.PaymentCompleted:
				return domain.ErrAlreadyPaid
			case domain.PaymentPending:
				return domain.ErrPendingPayment
			}
		}
		held, err := e.seats.HeldSeats(ctx, tx, b.ShowtimeID)
		if err != nil {
			return err
		}
		if conflicts := intersect(newSeatIDs, held, bookingID); len(conflicts) > 0 {
			return &domain.SeatConflictError{SeatIDs: conflicts}
		}
		if err := e.repo.DeleteSeatAssignments(ctx, tx, bookingID); err != nil {
			return err
		}
		if err := e.repo.InsertSeatAssignments(ctx, tx, bookingID, b.ShowtimeID, newSeatIDs); err != nil {
			return err
		}
		return e.repo.UpdateBookingSeats(ctx, tx, bookingID, len(newSeatIDs), total)
	})
	if err != nil {
		return nil, err
	}

	b.SeatCount = len(newSeatIDs)
	b.TotalCents = total
	return b, nil
}

func (e *Engine) loadSeats(ctx context.Context, st *domain.Showtime, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	seats, err := e.catalog.GetSeats(ctx, seatIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	var missing, wrongScreen []uuid.UUID
	for _, id := range seatIDs {
		s, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if s.ScreenID != st.ScreenID {
			wrongScreen = append(wrongScreen, id)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SeatNotFoundError{SeatIDs: missing}
	}
	if len(wrongScreen) > 0 {
		return nil, &domain.SeatWrongScreenError{SeatIDs: wrongScreen}
	}
	return seats, nil
}

// priceSeats sums per-seat prices: a positive seat override wins, otherwise
// the rate table at the showtime's start instant. Totals are always computed
// here; client-supplied amounts are never trusted.
func (e *Engine) priceSeats(ctx context.Context, st *domain.Showtime, seats []domain.Seat) (int64, error) {
	var total int64
	for _, s := range seats {
		if s.PriceOverrideCents > 0 {
			total += s.PriceOverrideCents
			continue
		}
		price, err := e.rates.PriceFor(ctx, s.Type, st.MovieType, st.TheaterID, st.StartsAt)
		if err != nil {
			return 0, err
		}
		total += price
	}
	return total, nil
}

func (e *Engine) insertEvent(ctx context.Context, tx pgx.Tx, kind string, b domain.Booking, seatIDs []uuid.UUID) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":  b.ID,
		"user_id":     b.UserID,
		"showtime_id": b.ShowtimeID,
		"total_cents": b.TotalCents,
		"seat_ids":    seatIDs,
	})
	if err != nil {
		return err
	}
	return e.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
		ID:        uuid.New(),
		EventType: kind,
		Payload:   payload,
		DedupeKey: kind + ":" + b.ID.String(),
	})
}

// intersect returns requested seats present in held, skipping those held by
// exclude (the booking being updated).
func intersect(requested []uuid.UUID, held map[uuid.UUID]uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	var conflicts []uuid.UUID
	for _, id := range requested {
		holder, ok := held[id]
		if ok && (exclude == uuid.Nil || holder != exclude) {
			conflicts = append(conflicts, id)
		}
	}
	return conflicts
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
