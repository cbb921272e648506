package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// DeepLink produces wallet app deep links (momo style). The link carries its
// own HMAC-SHA256 signature so the wallet can verify it came from us, and
// wallet callbacks are signed the same way in the other direction.
type DeepLink struct {
	secret string
	scheme string
	ttl    time.Duration
	now    func() time.Time
}

func NewDeepLink(secret string, ttl time.Duration) *DeepLink {
	return &DeepLink{secret: secret, scheme: "momo", ttl: ttl, now: time.Now}
}

func (d *DeepLink) Method() string { return MethodDeepLink }

func (d *DeepLink) CreateRequest(_ context.Context, req CreateRequest) (*Artifacts, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	q.Set("orderRef", req.OrderRef)
	q.Set("orderInfo", req.OrderInfo)
	q.Set("sig", signSHA256(strconv.FormatInt(req.AmountCents, 10)+"|"+req.OrderRef, d.secret))
	return &Artifacts{
		PaymentURL: d.scheme + "://payment?" + q.Encode(),
		ExpiresAt:  d.now().UTC().Add(d.ttl),
	}, nil
}

type deeplinkCallback struct {
	OrderRef      string `json:"orderRef"`
	AmountCents   int64  `json:"amount"`
	ResultCode    int    `json:"resultCode"`
	TransactionID string `json:"transId"`
	Signature     string `json:"signature"`
}

func (d *DeepLink) VerifyCallback(_ context.Context, payload []byte) (*CallbackResult, error) {
	var cb deeplinkCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "malformed deeplink callback")
	}
	msg := strconv.FormatInt(cb.AmountCents, 10) + "|" + cb.OrderRef + "|" + strconv.Itoa(cb.ResultCode) + "|" + cb.TransactionID
	if !hmacEqual(signSHA256(msg, d.secret), cb.Signature) {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "deeplink signature mismatch")
	}
	return &CallbackResult{
		Success:       cb.ResultCode == 0,
		TransactionID: cb.TransactionID,
		AmountCents:   cb.AmountCents,
		OrderRef:      cb.OrderRef,
	}, nil
}
