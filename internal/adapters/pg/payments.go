package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

func (r *Repository) InsertPayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, booking_id, method, status, amount_cents, transaction_id,
		                      payment_time, payment_url, qr_code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.BookingID, p.Method, p.Status, p.AmountCents, p.TransactionID,
		p.PaymentTime, p.PaymentURL, p.QRCode, p.ExpiresAt, p.CreatedAt)
	return err
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.getPayment(ctx, r.pool, `WHERE id = $1`, id)
}

func (r *Repository) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.getPayment(ctx, r.pool, `WHERE transaction_id = $1 AND transaction_id <> ''`, transactionID)
}

// GetPaymentTx locks the payment row; complete and cancel both re-read status
// through here immediately before acting, so whichever transaction commits
// first wins and the loser sees committed state.
func (r *Repository) GetPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	return r.getPayment(ctx, tx, `WHERE id = $1 FOR UPDATE`, id)
}

const paymentColumns = `id, booking_id, method, status, amount_cents, transaction_id,
	payment_time, payment_url, qr_code, expires_at, created_at`

func (r *Repository) getPayment(ctx context.Context, q querier, clause string, arg any) (*domain.Payment, error) {
	row := q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+clause, arg)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PaymentsForBooking loads the booking's payment history FOR UPDATE inside a
// transaction so derived-status decisions act on committed rows.
func (r *Repository) PaymentsForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) ([]domain.Payment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 FOR UPDATE
	`, bookingID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, transactionID string, paymentTime *time.Time) error {
	res, err := tx.Exec(ctx, `
		UPDATE payments SET status = $2, transaction_id = $3, payment_time = $4 WHERE id = $1
	`, id, status, transactionID, paymentTime)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePaymentArtifacts stores the gateway's redirect/QR artifacts after the
// best-effort external call. Runs outside the creating transaction; the
// PENDING payment is already committed by then.
func (r *Repository) UpdatePaymentArtifacts(ctx context.Context, id uuid.UUID, paymentURL, qrCode, transactionID string, expiresAt *time.Time) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE payments SET payment_url = $2, qr_code = $3, transaction_id = $4, expires_at = $5
		WHERE id = $1
	`, id, paymentURL, qrCode, transactionID, expiresAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelNonTerminalPayments moves every PENDING payment of the booking to
// CANCELLED. Terminal rows are never touched.
func (r *Repository) CancelNonTerminalPayments(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments SET status = 'CANCELLED' WHERE booking_id = $1 AND status = 'PENDING'
	`, bookingID)
	return err
}

// ExpiredPendingPayments returns PENDING payments whose gateway artifact
// expired before now; the expiry worker fails them.
func (r *Repository) ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.Method, &p.Status, &p.AmountCents,
		&p.TransactionID, &p.PaymentTime, &p.PaymentURL, &p.QRCode, &p.ExpiresAt, &p.CreatedAt)
	return p, err
}

func scanPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
