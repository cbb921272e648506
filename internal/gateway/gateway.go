// Package gateway holds the per-method payment provider strategies and the
// order-reference encoding shared with external gateways.
package gateway

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

const (
	MethodVNPay    = "VNPAY"
	MethodVietQR   = "VIETQR"
	MethodDeepLink = "DEEPLINK"
	MethodPayPal   = "PAYPAL"
)

type CreateRequest struct {
	AmountCents int64
	OrderRef    string
	OrderInfo   string
	ClientIP    string
}

// Artifacts is what the gateway hands back for the customer to act on.
// Depending on the method this is a redirect URL, a QR code, or both.
type Artifacts struct {
	PaymentURL    string
	QRCode        string
	TransactionID string
	ExpiresAt     time.Time
}

// CallbackResult is the verified content of an inbound callback.
type CallbackResult struct {
	Success       bool
	TransactionID string
	AmountCents   int64
	OrderRef      string
}

// Provider is one payment method strategy. VerifyCallback decodes the
// method's own payload schema and checks authenticity before anything else;
// a payload that fails either check returns domain.ErrVerificationFailed.
type Provider interface {
	Method() string
	CreateRequest(ctx context.Context, req CreateRequest) (*Artifacts, error)
	VerifyCallback(ctx context.Context, payload []byte) (*CallbackResult, error)
}

// Registry dispatches to providers by payment method.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Method()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Provider(method string) (Provider, error) {
	p, ok := r.providers[strings.ToUpper(method)]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "unknown payment method %q", method)
	}
	return p, nil
}

func (r *Registry) CreateRequest(ctx context.Context, method string, req CreateRequest) (*Artifacts, error) {
	p, err := r.Provider(method)
	if err != nil {
		return nil, err
	}
	return p.CreateRequest(ctx, req)
}

func (r *Registry) VerifyCallback(ctx context.Context, method string, payload []byte) (*CallbackResult, error) {
	p, err := r.Provider(method)
	if err != nil {
		return nil, err
	}
	return p.VerifyCallback(ctx, payload)
}

const orderRefPrefix = "PAYMENT"

// EncodeOrderRef builds the order reference sent to gateways. The
// PAYMENT_{paymentID}_{timestamp} layout is an external integration point;
// partners parse it, so it must not change.
func EncodeOrderRef(paymentID uuid.UUID, now time.Time) string {
	return orderRefPrefix + "_" + paymentID.String() + "_" + strconv.FormatInt(now.Unix(), 10)
}

// ParseOrderRef extracts the payment id from an order reference.
func ParseOrderRef(ref string) (uuid.UUID, error) {
	parts := strings.Split(ref, "_")
	if len(parts) != 3 || parts[0] != orderRefPrefix {
		return uuid.Nil, errors.Wrapf(domain.ErrNotFound, "malformed order ref %q", ref)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, errors.Wrapf(domain.ErrNotFound, "malformed order ref %q", ref)
	}
	return id, nil
}
