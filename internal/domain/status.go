package domain

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave this status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// BookingStatus is never stored; it is always recomputed from the booking's
// payment history via DeriveBookingStatus.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingBooked    BookingStatus = "BOOKED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingFailed    BookingStatus = "FAILED"
)

// Held reports whether a booking in this status keeps its seats unavailable
// to everyone else.
func (s BookingStatus) Held() bool {
	return s == BookingBooked || s == BookingPending
}

// DeriveBookingStatus is the single source of truth for a booking's visible
// status. Every listing and availability path must go through it; ad-hoc
// re-derivations in SQL are the bug class this function exists to prevent.
//
// Rules: any COMPLETED payment wins. Otherwise the latest payment decides
// (CANCELLED or FAILED), and everything else, including zero payments, is
// PENDING: a hold exists from creation until explicitly resolved.
func DeriveBookingStatus(payments []Payment) BookingStatus {
	var latest *Payment
	for i := range payments {
		p := &payments[i]
		if p.Status == PaymentCompleted {
			return BookingBooked
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) ||
			(p.CreatedAt.Equal(latest.CreatedAt) && p.ID.String() > latest.ID.String()) {
			latest = p
		}
	}
	if latest == nil {
		return BookingPending
	}
	switch latest.Status {
	case PaymentCancelled:
		return BookingCancelled
	case PaymentFailed:
		return BookingFailed
	}
	return BookingPending
}
