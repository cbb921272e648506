package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	redisadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/redis"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
)

// UserID returns the authenticated caller, uuid.Nil if the route is public.
func UserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func IsAdmin(ctx context.Context) bool {
	return Role(ctx) == domain.RoleAdmin
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// LoggerMiddleware logs every request with its id and outcome, and feeds the
// request counter.
func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			observability.RequestsTotal.WithLabelValues(
				r.URL.Path, strconv.Itoa(ww.Status()), r.Method,
			).Inc()
			logger.WithField("request_id", middleware.GetReqID(r.Context())).
				WithField("status", strconv.Itoa(ww.Status())).
				WithField("duration", time.Since(start).String()).
				Info(r.Method, " ", r.URL.Path)
		})
	}
}

// JWTMiddleware authenticates the Bearer token. Tokens are HS256 with the
// user id in sub and the role claim alongside.
func JWTMiddleware(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			var claims struct {
				Role string `json:"role"`
				jwt.RegisteredClaims
			}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key and records the response of a first attempt. POST only;
// gateway callbacks never carry the header and are mounted outside this
// middleware.
func IdempotencyMiddleware(idemp *redisadapter.Idempotency, ttl time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				http.Error(w, "missing Idempotency-Key", http.StatusBadRequest)
				return
			}
			if len(key) < 16 {
				http.Error(w, "invalid Idempotency-Key", http.StatusBadRequest)
				return
			}
			// Scope the key to the caller so two users cannot collide.
			key = UserID(r.Context()).String() + ":" + key

			existing, err := idemp.Get(r.Context(), key)
			if err != nil {
				http.Error(w, "idempotency check failed", http.StatusInternalServerError)
				return
			}
			if existing != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(existing.Status)
				w.Write(existing.Body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only successful outcomes are worth replaying. A rejected
			// attempt, a seat conflict included, may legitimately be retried
			// with the same key once the cause clears.
			if rec.status < 300 {
				_ = idemp.Set(r.Context(), key, redisadapter.SavedResponse{
					Status: rec.status,
					Body:   rec.body,
				}, ttl)
			}
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

// RateLimitMiddleware enforces a per-user and a per-IP fixed window.
func RateLimitMiddleware(cache *redisadapter.Cache) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			allowed, err := cache.Allow(r.Context(), "ip:"+ip, 100, time.Minute)
			if err == nil && allowed {
				if userID := UserID(r.Context()); userID != uuid.Nil {
					allowed, err = cache.Allow(r.Context(), "user:"+userID.String(), 30, time.Minute)
				}
			}
			if err != nil {
				// Redis down: let traffic through rather than failing closed.
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				observability.RateLimitExceeded.Inc()
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
