package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	PostgresDSN  string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	JWTSecret    string
	OTLPEndpoint string

	// Payment gateway settings.
	VNPaySecret    string
	VNPayTmnCode   string
	VNPayBaseURL   string
	VietQRSecret   string
	VietQRBankCode string
	VietQRAccount  string
	DeepLinkSecret string
	PayPalSecret   string
	ReturnURL      string

	PaymentTTL     time.Duration // gateway artifact validity
	CallbackDedupe time.Duration // redis dedupe window for callbacks
	IdempotencyTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		VNPaySecret:    os.Getenv("VNPAY_SECRET"),
		VNPayTmnCode:   os.Getenv("VNPAY_TMN_CODE"),
		VNPayBaseURL:   getenv("VNPAY_BASE_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VietQRSecret:   os.Getenv("VIETQR_SECRET"),
		VietQRBankCode: os.Getenv("VIETQR_BANK_CODE"),
		VietQRAccount:  os.Getenv("VIETQR_ACCOUNT"),
		DeepLinkSecret: os.Getenv("DEEPLINK_SECRET"),
		PayPalSecret:   os.Getenv("PAYPAL_SECRET"),
		ReturnURL:      os.Getenv("PAYMENT_RETURN_URL"),
		PaymentTTL:     duration("PAYMENT_TTL", 15*time.Minute),
		CallbackDedupe: duration("CALLBACK_DEDUPE_TTL", 24*time.Hour),
		IdempotencyTTL: duration("IDEMPOTENCY_TTL", time.Hour),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return fallback
	}
	return d
}
