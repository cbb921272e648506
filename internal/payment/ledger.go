// Package payment records payment attempts against bookings and derives
// booking status from them. State machine: PENDING→COMPLETED, PENDING→FAILED,
// any non-terminal→CANCELLED. Terminal rows never move again.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/gateway"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

type Ledger struct {
	repo    *pg.Repository
	catalog domain.CatalogProvider
	gateway *gateway.Registry
	logger  observability.Logger
	now     func() time.Time
}

func NewLedger(repo *pg.Repository, catalog domain.CatalogProvider, registry *gateway.Registry, logger observability.Logger) *Ledger {
	return &Ledger{
		repo:    repo,
		catalog: catalog,
		gateway: registry,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CreateAttempt opens a PENDING payment for the booking. The external
// gateway round trip happens after commit and is best-effort: its failure is
// logged and swallowed, the PENDING payment stands and can still be resolved
// by callback or manual completion.
//
// A booking whose previous attempt failed had its seat holds released; the
// new attempt re-arms them, and seats lost in the meantime surface as a
// SeatConflictError.
func (l *Ledger) CreateAttempt(ctx context.Context, bookingID uuid.UUID, method string, amountCents int64, requesterID uuid.UUID, isAdmin bool) (*domain.Payment, error) {
	b, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != requesterID && !isAdmin {
		return nil, domain.ErrForbidden
	}

	st, err := l.catalog.GetShowtime(ctx, b.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if st.Started(l.now()) {
		return nil, domain.ErrShowtimeStarted
	}

	p := domain.NewPayment(bookingID, method, amountCents, l.now().UTC())
	err = l.repo.WithTx(ctx, func(tx pgx.Tx) error {
		// The total is compared against the booking row under lock; a seat
		// update committed after the read above cannot leave a stale amount.
		cur, err := l.repo.GetBookingTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		payments, err := l.repo.PaymentsForBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		for _, prev := range payments {
			if prev.Status == domain.PaymentCompleted {
				return domain.ErrAlreadyPaid
			}
		}
		if amountCents != cur.TotalCents {
			return domain.ErrAmountMismatch
		}
		if !domain.DeriveBookingStatus(payments).Held() {
			if err := l.repo.ReactivateSeatAssignments(ctx, tx, bookingID); err != nil {
				return err
			}
		}
		return l.repo.InsertPayment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	observability.PaymentTransitions.WithLabelValues(string(domain.PaymentPending)).Inc()

	art, err := l.gateway.CreateRequest(ctx, method, gateway.CreateRequest{
		AmountCents: amountCents,
		OrderRef:    gateway.EncodeOrderRef(p.ID, l.now()),
		OrderInfo:   "booking " + bookingID.String(),
	})
	if err != nil {
		l.logger.WithField("payment_id", p.ID.String()).Warn("gateway request creation failed: ", err)
		return &p, nil
	}

	var expires *time.Time
	if !art.ExpiresAt.IsZero() {
		expires = &art.ExpiresAt
	}
	if err := l.repo.UpdatePaymentArtifacts(ctx, p.ID, art.PaymentURL, art.QRCode, art.TransactionID, expires); err != nil {
		l.logger.WithField("payment_id", p.ID.String()).Error("failed to store gateway artifacts: ", err)
		return &p, nil
	}
	p.PaymentURL = art.PaymentURL
	p.QRCode = art.QRCode
	p.TransactionID = art.TransactionID
	p.ExpiresAt = expires
	return &p, nil
}

// Complete moves a PENDING payment to COMPLETED or FAILED, stamping the
// external transaction id and payment time. Calling it again for a payment
// already COMPLETED with the same transaction id is a no-op, which is what
// makes at-least-once callback delivery safe; any other terminal state
// returns ErrPaymentNotPending. The status re-read happens under row lock so
// a concurrent cancel and complete cannot both win.
func (l *Ledger) Complete(ctx context.Context, paymentID uuid.UUID, transactionID string, success bool) (*domain.Payment, error) {
	var result *domain.Payment
	err := l.repo.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := l.repo.GetPaymentTx(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			if p.Status == domain.PaymentCompleted && p.TransactionID == transactionID {
				result = p
				return nil
			}
			return errors.Wrapf(domain.ErrPaymentNotPending, "payment %s is %s", p.ID, p.Status)
		}

		status := domain.PaymentCompleted
		if !success {
			status = domain.PaymentFailed
		}
		when := l.now().UTC()
		if err := l.repo.UpdatePaymentStatus(ctx, tx, p.ID, status, transactionID, &when); err != nil {
			return err
		}
		p.Status = status
		p.TransactionID = transactionID
		p.PaymentTime = &when
		result = p

		if status == domain.PaymentCompleted {
			return l.insertEvent(ctx, tx, domain.EventBookingConfirmed, p)
		}
		return l.settleFailure(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	observability.PaymentTransitions.WithLabelValues(string(result.Status)).Inc()
	return result, nil
}

// Expire fails a PENDING payment whose gateway artifact lapsed without a
// callback. Races with a late callback are resolved by the row lock: if the
// callback committed first the payment is no longer pending and Expire backs
// off without error.
func (l *Ledger) Expire(ctx context.Context, paymentID uuid.UUID) error {
	return l.repo.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := l.repo.GetPaymentTx(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentPending {
			return nil
		}
		if p.ExpiresAt == nil || p.ExpiresAt.After(l.now()) {
			return nil
		}
		when := l.now().UTC()
		if err := l.repo.UpdatePaymentStatus(ctx, tx, p.ID, domain.PaymentFailed, p.TransactionID, &when); err != nil {
			return err
		}
		p.Status = domain.PaymentFailed
		return l.settleFailure(ctx, tx, p)
	})
}

// settleFailure releases the booking's seat holds when the failure leaves
// the booking's derived status non-held, and emits the payment.failed event.
func (l *Ledger) settleFailure(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	payments, err := l.repo.PaymentsForBooking(ctx, tx, p.BookingID)
	if err != nil {
		return err
	}
	if !domain.DeriveBookingStatus(payments).Held() {
		if err := l.repo.ReleaseSeatAssignments(ctx, tx, p.BookingID); err != nil {
			return err
		}
	}
	return l.insertEvent(ctx, tx, domain.EventPaymentFailed, p)
}

// StatusOf loads the booking's payments and derives its visible status.
// Every listing path goes through domain.DeriveBookingStatus; this is just
// the load-and-derive convenience.
func (l *Ledger) StatusOf(ctx context.Context, bookingID uuid.UUID) (domain.BookingStatus, error) {
	var status domain.BookingStatus
	err := l.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := l.repo.GetBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}
		payments, err := l.repo.PaymentsForBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		status = domain.DeriveBookingStatus(payments)
		return nil
	})
	return status, err
}

func (l *Ledger) insertEvent(ctx context.Context, tx pgx.Tx, kind string, p *domain.Payment) error {
	payload, err := json.Marshal(map[string]any{
		"payment_id":     p.ID,
		"booking_id":     p.BookingID,
		"method":         p.Method,
		"status":         p.Status,
		"amount_cents":   p.AmountCents,
		"transaction_id": p.TransactionID,
	})
	if err != nil {
		return err
	}
	return l.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
		ID:        uuid.New(),
		EventType: kind,
		Payload:   payload,
		DedupeKey: kind + ":" + p.ID.String(),
	})
}
