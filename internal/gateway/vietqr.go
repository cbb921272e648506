package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// VietQR composes static bank-transfer QR payloads. There is no redirect;
// the customer scans the code and the bank's webhook delivers the callback,
// signed with HMAC-SHA256 over amount|order_ref|status|transaction_id.
type VietQR struct {
	secret   string
	bankCode string
	account  string
	ttl      time.Duration
	now      func() time.Time
}

func NewVietQR(secret, bankCode, account string, ttl time.Duration) *VietQR {
	return &VietQR{
		secret:   secret,
		bankCode: bankCode,
		account:  account,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (v *VietQR) Method() string { return MethodVietQR }

func (v *VietQR) CreateRequest(_ context.Context, req CreateRequest) (*Artifacts, error) {
	qr := fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact2.png?amount=%d&addInfo=%s",
		v.bankCode, v.account, req.AmountCents, req.OrderRef)
	return &Artifacts{
		QRCode:    qr,
		ExpiresAt: v.now().UTC().Add(v.ttl),
	}, nil
}

type vietqrCallback struct {
	OrderRef      string `json:"order_ref"`
	AmountCents   int64  `json:"amount_cents"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Signature     string `json:"signature"`
}

func (v *VietQR) VerifyCallback(_ context.Context, payload []byte) (*CallbackResult, error) {
	var cb vietqrCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "malformed vietqr callback")
	}
	msg := strconv.FormatInt(cb.AmountCents, 10) + "|" + cb.OrderRef + "|" + cb.Status + "|" + cb.TransactionID
	if !hmacEqual(signSHA256(msg, v.secret), cb.Signature) {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "vietqr signature mismatch")
	}
	return &CallbackResult{
		Success:       cb.Status == "SUCCESS",
		TransactionID: cb.TransactionID,
		AmountCents:   cb.AmountCents,
		OrderRef:      cb.OrderRef,
	}, nil
}

func signSHA256(msg, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
