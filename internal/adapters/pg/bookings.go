package pg

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// ShowtimeBooking bundles a booking with the rows its derived status depends
// on. SeatLedger consumes it to compute held seats inside the caller's
// transaction.
type ShowtimeBooking struct {
	Booking  domain.Booking
	Payments []domain.Payment
	SeatIDs  []uuid.UUID
}

func (r *Repository) InsertBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, user_id, showtime_id, seat_count, total_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.UserID, b.ShowtimeID, b.SeatCount, b.TotalCents, b.CreatedAt)
	return err
}

// InsertSeatAssignments inserts one ACTIVE row per seat. The partial unique
// index rejects a seat already ACTIVE for the showtime; the per-row
// ON CONFLICT check turns that into a SeatConflictError naming the seat.
func (r *Repository) InsertSeatAssignments(ctx context.Context, tx pgx.Tx, bookingID, showtimeID uuid.UUID, seatIDs []uuid.UUID) error {
	var conflicts []uuid.UUID
	for _, seatID := range seatIDs {
		res, err := tx.Exec(ctx, `
			INSERT INTO seat_assignments (booking_id, showtime_id, seat_id, status)
			VALUES ($1, $2, $3, 'ACTIVE')
			ON CONFLICT (showtime_id, seat_id) WHERE status = 'ACTIVE' DO NOTHING
		`, bookingID, showtimeID, seatID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			conflicts = append(conflicts, seatID)
		}
	}
	if len(conflicts) > 0 {
		return &domain.SeatConflictError{SeatIDs: conflicts}
	}
	return nil
}

func (r *Repository) DeleteSeatAssignments(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM seat_assignments WHERE booking_id = $1`, bookingID)
	return err
}

// ReleaseSeatAssignments drops the booking's rows out of the active unique
// index without deleting them, freeing the seats for other bookings.
func (r *Repository) ReleaseSeatAssignments(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE seat_assignments SET status = 'RELEASED'
		WHERE booking_id = $1 AND status = 'ACTIVE'
	`, bookingID)
	return err
}

// ReactivateSeatAssignments re-arms a booking's released holds, for a new
// payment attempt after a failed one. Seats claimed by someone else in the
// interim come back as a SeatConflictError.
func (r *Repository) ReactivateSeatAssignments(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	rows, err := tx.Query(ctx, `
		SELECT sa.seat_id
		FROM seat_assignments sa
		JOIN seat_assignments other
		  ON other.showtime_id = sa.showtime_id
		 AND other.seat_id = sa.seat_id
		 AND other.booking_id <> sa.booking_id
		 AND other.status = 'ACTIVE'
		WHERE sa.booking_id = $1 AND sa.status = 'RELEASED'
	`, bookingID)
	if err != nil {
		return err
	}
	conflicts, err := scanIDs(rows)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.SeatConflictError{SeatIDs: conflicts}
	}
	_, err = tx.Exec(ctx, `
		UPDATE seat_assignments SET status = 'ACTIVE'
		WHERE booking_id = $1 AND status = 'RELEASED'
	`, bookingID)
	return err
}

// SeatAssignments returns the booking's assignment rows, active and released.
func (r *Repository) SeatAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT booking_id, showtime_id, seat_id, status
		FROM seat_assignments WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SeatAssignment
	for rows.Next() {
		var sa domain.SeatAssignment
		var status string
		if err := rows.Scan(&sa.BookingID, &sa.ShowtimeID, &sa.SeatID, &status); err != nil {
			return nil, err
		}
		sa.Status = domain.AssignmentStatus(status)
		out = append(out, sa)
	}
	return out, rows.Err()
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.getBooking(ctx, r.pool, id, false)
}

// GetBookingTx loads the booking FOR UPDATE so concurrent cancel/complete
// paths observe committed state before acting.
func (r *Repository) GetBookingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error) {
	return r.getBooking(ctx, tx, id, true)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) getBooking(ctx context.Context, q querier, id uuid.UUID, lock bool) (*domain.Booking, error) {
	sql := `
		SELECT id, user_id, showtime_id, seat_count, total_cents, created_at
		FROM bookings WHERE id = $1`
	if lock {
		sql += " FOR UPDATE"
	}
	var b domain.Booking
	err := q.QueryRow(ctx, sql, id).Scan(
		&b.ID, &b.UserID, &b.ShowtimeID, &b.SeatCount, &b.TotalCents, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) DeleteBooking(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	res, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateBookingSeats(ctx context.Context, tx pgx.Tx, id uuid.UUID, seatCount int, totalCents int64) error {
	res, err := tx.Exec(ctx, `
		UPDATE bookings SET seat_count = $2, total_cents = $3 WHERE id = $1
	`, id, seatCount, totalCents)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BookingsForShowtime loads every booking of a showtime with its payments and
// seat IDs, locking the booking rows. Always called inside the transaction
// that will act on the result.
func (r *Repository) BookingsForShowtime(ctx context.Context, tx pgx.Tx, showtimeID uuid.UUID) ([]ShowtimeBooking, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, showtime_id, seat_count, total_cents, created_at
		FROM bookings WHERE showtime_id = $1 FOR UPDATE
	`, showtimeID)
	if err != nil {
		return nil, err
	}
	result, index, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result))
	for i, sb := range result {
		ids[i] = sb.Booking.ID
	}

	prows, err := tx.Query(ctx, `
		SELECT id, booking_id, method, status, amount_cents, transaction_id,
		       payment_time, payment_url, qr_code, expires_at, created_at
		FROM payments WHERE booking_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	if err := attachPayments(prows, result, index); err != nil {
		return nil, err
	}

	srows, err := tx.Query(ctx, `
		SELECT booking_id, seat_id FROM seat_assignments WHERE booking_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bookingID, seatID uuid.UUID
		if err := srows.Scan(&bookingID, &seatID); err != nil {
			return nil, err
		}
		if i, ok := index[bookingID]; ok {
			result[i].SeatIDs = append(result[i].SeatIDs, seatID)
		}
	}
	return result, srows.Err()
}

// ListBookingsByUser returns the user's bookings with payments and seats,
// newest first, for the self-service ticket list.
func (r *Repository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]ShowtimeBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, showtime_id, seat_count, total_cents, created_at
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return r.loadBookingDetails(ctx, rows)
}

// ListBookings returns every booking, newest first, for the admin list.
func (r *Repository) ListBookings(ctx context.Context, limit int) ([]ShowtimeBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, showtime_id, seat_count, total_cents, created_at
		FROM bookings ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return r.loadBookingDetails(ctx, rows)
}

func (r *Repository) loadBookingDetails(ctx context.Context, rows pgx.Rows) ([]ShowtimeBooking, error) {
	result, index, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}
	ids := make([]uuid.UUID, len(result))
	for i, sb := range result {
		ids[i] = sb.Booking.ID
	}
	prows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, method, status, amount_cents, transaction_id,
		       payment_time, payment_url, qr_code, expires_at, created_at
		FROM payments WHERE booking_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	if err := attachPayments(prows, result, index); err != nil {
		return nil, err
	}
	srows, err := r.pool.Query(ctx, `
		SELECT booking_id, seat_id FROM seat_assignments WHERE booking_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bookingID, seatID uuid.UUID
		if err := srows.Scan(&bookingID, &seatID); err != nil {
			return nil, err
		}
		if i, ok := index[bookingID]; ok {
			result[i].SeatIDs = append(result[i].SeatIDs, seatID)
		}
	}
	return result, srows.Err()
}

func scanBookings(rows pgx.Rows) ([]ShowtimeBooking, map[uuid.UUID]int, error) {
	defer rows.Close()
	var result []ShowtimeBooking
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.SeatCount, &b.TotalCents, &b.CreatedAt); err != nil {
			return nil, nil, err
		}
		index[b.ID] = len(result)
		result = append(result, ShowtimeBooking{Booking: b})
	}
	return result, index, rows.Err()
}

func attachPayments(rows pgx.Rows, result []ShowtimeBooking, index map[uuid.UUID]int) error {
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return err
		}
		if i, ok := index[p.BookingID]; ok {
			result[i].Payments = append(result[i].Payments, p)
		}
	}
	return rows.Err()
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
