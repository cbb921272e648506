package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatVIP      SeatType = "VIP"
	SeatSweetbox SeatType = "SWEETBOX"
)

// Showtime is read-only reference data served by the catalog. A showtime in
// the past never accepts new bookings.
type Showtime struct {
	ID        uuid.UUID
	MovieID   uuid.UUID
	MovieType string
	ScreenID  uuid.UUID
	TheaterID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
}

func (s *Showtime) Started(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// Seat belongs to exactly one screen. PriceOverrideCents, when positive,
// takes precedence over the rate table.
type Seat struct {
	ID                 uuid.UUID
	ScreenID           uuid.UUID
	Row                string
	Number             int
	Type               SeatType
	PriceOverrideCents int64
}

type Booking struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ShowtimeID uuid.UUID
	SeatCount  int
	TotalCents int64
	CreatedAt  time.Time
}

type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "ACTIVE"
	AssignmentReleased AssignmentStatus = "RELEASED"
)

// SeatAssignment is the join row that actually reserves a seat. An ACTIVE
// assignment participates in the (showtime_id, seat_id) uniqueness constraint;
// a RELEASED one does not.
type SeatAssignment struct {
	BookingID  uuid.UUID
	ShowtimeID uuid.UUID
	SeatID     uuid.UUID
	Status     AssignmentStatus
}

// Payment is one payment attempt against a booking. A booking may accumulate
// several attempts over its life; rows are never resurrected once terminal.
type Payment struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Method        string
	Status        PaymentStatus
	AmountCents   int64
	TransactionID string
	PaymentTime   *time.Time
	PaymentURL    string
	QRCode        string
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

type User struct {
	ID      uuid.UUID
	Email   string
	Role    string
	Blocked bool
}

const RoleAdmin = "admin"

func NewBooking(userID, showtimeID uuid.UUID, seatCount int, totalCents int64, now time.Time) Booking {
	return Booking{
		ID:         uuid.New(),
		UserID:     userID,
		ShowtimeID: showtimeID,
		SeatCount:  seatCount,
		TotalCents: totalCents,
		CreatedAt:  now,
	}
}

func NewPayment(bookingID uuid.UUID, method string, amountCents int64, now time.Time) Payment {
	return Payment{
		ID:          uuid.New(),
		BookingID:   bookingID,
		Method:      method,
		Status:      PaymentPending,
		AmountCents: amountCents,
		CreatedAt:   now,
	}
}
