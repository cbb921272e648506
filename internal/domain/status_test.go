package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

func payment(status domain.PaymentStatus, createdAt time.Time) domain.Payment {
	return domain.Payment{
		ID:        uuid.New(),
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestDeriveBookingStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payments []domain.Payment
		want     domain.BookingStatus
	}{
		{
			name:     "no payments is a pending hold",
			payments: nil,
			want:     domain.BookingPending,
		},
		{
			name:     "single pending",
			payments: []domain.Payment{payment(domain.PaymentPending, base)},
			want:     domain.BookingPending,
		},
		{
			name: "completed wins regardless of order",
			payments: []domain.Payment{
				payment(domain.PaymentFailed, base.Add(2*time.Hour)),
				payment(domain.PaymentCompleted, base),
				payment(domain.PaymentCancelled, base.Add(time.Hour)),
			},
			want: domain.BookingBooked,
		},
		{
			name: "latest failed",
			payments: []domain.Payment{
				payment(domain.PaymentCancelled, base),
				payment(domain.PaymentFailed, base.Add(time.Hour)),
			},
			want: domain.BookingFailed,
		},
		{
			name: "latest cancelled",
			payments: []domain.Payment{
				payment(domain.PaymentFailed, base),
				payment(domain.PaymentCancelled, base.Add(time.Hour)),
			},
			want: domain.BookingCancelled,
		},
		{
			name: "retry after failure is pending again",
			payments: []domain.Payment{
				payment(domain.PaymentFailed, base),
				payment(domain.PaymentPending, base.Add(time.Hour)),
			},
			want: domain.BookingPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.DeriveBookingStatus(tt.payments))
		})
	}
}

func TestDeriveBookingStatus_TieBreakByID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	low := payment(domain.PaymentFailed, at)
	high := payment(domain.PaymentCancelled, at)
	low.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high.ID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	// Same timestamp: the larger id is the later attempt.
	assert.Equal(t, domain.BookingCancelled,
		domain.DeriveBookingStatus([]domain.Payment{low, high}))
	assert.Equal(t, domain.BookingCancelled,
		domain.DeriveBookingStatus([]domain.Payment{high, low}))
}

func TestHeld(t *testing.T) {
	assert.True(t, domain.BookingPending.Held())
	assert.True(t, domain.BookingBooked.Held())
	assert.False(t, domain.BookingCancelled.Held())
	assert.False(t, domain.BookingFailed.Held())
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, domain.PaymentPending.Terminal())
	assert.True(t, domain.PaymentCompleted.Terminal())
	assert.True(t, domain.PaymentFailed.Terminal())
	assert.True(t, domain.PaymentCancelled.Terminal())
}
