package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// VNPay builds redirect URLs for the VNPay hosted payment page and verifies
// its IPN callbacks. Signatures are HMAC-SHA512 over the sorted, url-encoded
// parameter string, excluding vnp_SecureHash itself.
type VNPay struct {
	secret    string
	tmnCode   string
	baseURL   string
	returnURL string
	ttl       time.Duration
	now       func() time.Time
}

func NewVNPay(secret, tmnCode, baseURL, returnURL string, ttl time.Duration) *VNPay {
	return &VNPay{
		secret:    secret,
		tmnCode:   tmnCode,
		baseURL:   baseURL,
		returnURL: returnURL,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (v *VNPay) Method() string { return MethodVNPay }

func (v *VNPay) CreateRequest(_ context.Context, req CreateRequest) (*Artifacts, error) {
	now := v.now().UTC()
	expires := now.Add(v.ttl)

	// vnp_Amount is in the currency's minor unit times 100.
	params := map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    v.tmnCode,
		"vnp_Amount":     strconv.FormatInt(req.AmountCents*100, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.OrderRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  v.returnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": now.Format("20060102150405"),
		"vnp_ExpireDate": expires.Format("20060102150405"),
	}
	query := signedQuery(params, v.secret)

	return &Artifacts{
		PaymentURL: v.baseURL + "?" + query,
		ExpiresAt:  expires,
	}, nil
}

type vnpayCallback struct {
	TxnRef        string `json:"vnp_TxnRef"`
	Amount        string `json:"vnp_Amount"`
	ResponseCode  string `json:"vnp_ResponseCode"`
	TransactionNo string `json:"vnp_TransactionNo"`
	BankCode      string `json:"vnp_BankCode"`
	PayDate       string `json:"vnp_PayDate"`
	SecureHash    string `json:"vnp_SecureHash"`
}

func (v *VNPay) VerifyCallback(_ context.Context, payload []byte) (*CallbackResult, error) {
	var cb vnpayCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "malformed vnpay callback")
	}
	params := map[string]string{
		"vnp_TxnRef":        cb.TxnRef,
		"vnp_Amount":        cb.Amount,
		"vnp_ResponseCode":  cb.ResponseCode,
		"vnp_TransactionNo": cb.TransactionNo,
		"vnp_BankCode":      cb.BankCode,
		"vnp_PayDate":       cb.PayDate,
	}
	if !hmacEqual(signParams(params, v.secret), cb.SecureHash) {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "vnpay signature mismatch")
	}
	amount, err := strconv.ParseInt(cb.Amount, 10, 64)
	if err != nil || amount%100 != 0 {
		return nil, errors.Wrap(domain.ErrVerificationFailed, "vnpay amount malformed")
	}
	return &CallbackResult{
		Success:       cb.ResponseCode == "00",
		TransactionID: cb.TransactionNo,
		AmountCents:   amount / 100,
		OrderRef:      cb.TxnRef,
	}, nil
}

// signedQuery returns the sorted url-encoded query string with the
// vnp_SecureHash parameter appended.
func signedQuery(params map[string]string, secret string) string {
	return encodeSorted(params) + "&vnp_SecureHash=" + signParams(params, secret)
}

func signParams(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(encodeSorted(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

func encodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func hmacEqual(expected, got string) bool {
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(got)))
}
