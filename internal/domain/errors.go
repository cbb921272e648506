package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrShowtimeNotFound     = errors.New("showtime not found")
	ErrShowtimeStarted      = errors.New("showtime already started")
	ErrNotOwner             = errors.New("booking belongs to another user")
	ErrForbidden            = errors.New("forbidden")
	ErrAlreadyPaid          = errors.New("booking has a completed payment")
	ErrPendingPayment       = errors.New("booking has a pending payment attempt")
	ErrAmountMismatch       = errors.New("amount does not match booking total")
	ErrRateNotFound         = errors.New("no rate rule matches")
	ErrVerificationFailed   = errors.New("callback verification failed")
	ErrPaymentNotPending    = errors.New("payment is not pending")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSerializationFailure = errors.New("serialization failure")
)

// SeatConflictError enumerates the requested seats already held by another
// booking, so the caller can re-render the seat map.
type SeatConflictError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatConflictError) Error() string {
	return "seats already held: " + joinIDs(e.SeatIDs)
}

// SeatNotFoundError enumerates requested seat IDs the catalog does not know.
type SeatNotFoundError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatNotFoundError) Error() string {
	return "seats not found: " + joinIDs(e.SeatIDs)
}

// SeatWrongScreenError enumerates seats that exist but belong to a different
// screen than the showtime's.
type SeatWrongScreenError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatWrongScreenError) Error() string {
	return "seats not in showtime screen: " + joinIDs(e.SeatIDs)
}

func joinIDs(ids []uuid.UUID) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(ss, ", "))
}
