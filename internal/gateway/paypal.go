package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// PayPal issues checkout approval URLs and verifies webhook notifications.
// Webhook authenticity is checked with the shared-secret HMAC scheme over
// order_ref|amount_cents|status|capture_id.
type PayPal struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewPayPal(secret string, ttl time.Duration) *PayPal {
	return &PayPal{secret: secret, ttl: ttl, now: time.Now}
}

func (p *PayPal) Method() string { return MethodPayPal }

func (p *PayPal) CreateRequest(_ context.Context, req CreateRequest) (*Artifacts, error) {
	token := uuid.New().String()
	return &Artifacts{
		PaymentURL:    "https://www.paypal.com/checkoutnow?token=" + token,
		TransactionID: token,
		ExpiresAt:     p.now().UTC().Add(p.ttl),
	}, nil
}

type paypalCallback struct {
	OrderRef    string `json:"order_ref"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	CaptureID   string `json:"capture_id"`
	Signature   string `json:"signature"`
}

func (p *PayPal) VerifyCallback(_ context.Context, payload []byte) (*CallbackResult, error) {
	var cb paypalCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "malformed paypal callback")
	}
	msg := cb.OrderRef + "|" + strconv.FormatInt(cb.AmountCents, 10) + "|" + cb.Status + "|" + cb.CaptureID
	if !hmacEqual(signSHA256(msg, p.secret), cb.Signature) {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "paypal signature mismatch")
	}
	return &CallbackResult{
		Success:       cb.Status == "COMPLETED",
		TransactionID: cb.CaptureID,
		AmountCents:   cb.AmountCents,
		OrderRef:      cb.OrderRef,
	}, nil
}
