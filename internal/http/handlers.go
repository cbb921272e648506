package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	redisadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/redis"
	"github.com/DucAnhIT03/movie-serverside/internal/booking"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/payment"
	"github.com/DucAnhIT03/movie-serverside/internal/reconciler"
	"github.com/DucAnhIT03/movie-serverside/internal/ticket"
)

const maxCallbackBody = 64 << 10

type Handlers struct {
	engine   *booking.Engine
	tickets  *ticket.Ops
	payments *payment.Ledger
	recon    *reconciler.Reconciler
	repo     *pg.Repository
	cache    *redisadapter.Cache
	logger   observability.Logger
}

func NewHandlers(engine *booking.Engine, tickets *ticket.Ops, payments *payment.Ledger, recon *reconciler.Reconciler, repo *pg.Repository, cache *redisadapter.Cache, logger observability.Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		tickets:  tickets,
		payments: payments,
		recon:    recon,
		repo:     repo,
		cache:    cache,
		logger:   logger,
	}
}

type bookingResponse struct {
	BookingID  uuid.UUID   `json:"booking_id"`
	ShowtimeID uuid.UUID   `json:"showtime_id"`
	SeatIDs    []uuid.UUID `json:"seat_ids,omitempty"`
	SeatCount  int         `json:"seat_count"`
	TotalCents int64       `json:"total_cents"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

func toBookingResponse(sb pg.ShowtimeBooking) bookingResponse {
	return bookingResponse{
		BookingID:  sb.Booking.ID,
		ShowtimeID: sb.Booking.ShowtimeID,
		SeatIDs:    sb.SeatIDs,
		SeatCount:  sb.Booking.SeatCount,
		TotalCents: sb.Booking.TotalCents,
		Status:     string(domain.DeriveBookingStatus(sb.Payments)),
		CreatedAt:  sb.Booking.CreatedAt,
	}
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowtimeID uuid.UUID   `json:"showtime_id"`
		SeatIDs    []uuid.UUID `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.engine.Create(r.Context(), UserID(r.Context()), req.ShowtimeID, req.SeatIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{
		BookingID:  b.ID,
		ShowtimeID: b.ShowtimeID,
		SeatIDs:    req.SeatIDs,
		SeatCount:  b.SeatCount,
		TotalCents: b.TotalCents,
		Status:     string(domain.BookingPending),
		CreatedAt:  b.CreatedAt,
	})
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListBookingsByUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]bookingResponse, len(list))
	for i, sb := range list {
		resp[i] = toBookingResponse(sb)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.UserID != UserID(r.Context()) && !IsAdmin(r.Context()) {
		writeError(w, domain.ErrForbidden)
		return
	}

	status, err := h.payments.StatusOf(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	assignments, err := h.repo.SeatAssignments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	seatIDs := make([]uuid.UUID, 0, len(assignments))
	for _, sa := range assignments {
		seatIDs = append(seatIDs, sa.SeatID)
	}
	writeJSON(w, http.StatusOK, bookingResponse{
		BookingID:  b.ID,
		ShowtimeID: b.ShowtimeID,
		SeatIDs:    seatIDs,
		SeatCount:  b.SeatCount,
		TotalCents: b.TotalCents,
		Status:     string(status),
		CreatedAt:  b.CreatedAt,
	})
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		SeatIDs []uuid.UUID `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.tickets.UpdateTicket(r.Context(), id, UserID(r.Context()), req.SeatIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	// A seat change leaves the payment history untouched, so the visible
	// status is re-derived rather than assumed.
	status, err := h.payments.StatusOf(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{
		BookingID:  b.ID,
		ShowtimeID: b.ShowtimeID,
		SeatIDs:    req.SeatIDs,
		SeatCount:  b.SeatCount,
		TotalCents: b.TotalCents,
		Status:     string(status),
		CreatedAt:  b.CreatedAt,
	})
}

// DeleteBooking cancels the caller's own booking, or anyone's when the
// caller is an admin. Either way a completed payment blocks it.
func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if IsAdmin(r.Context()) {
		err = h.tickets.DeleteTicket(r.Context(), id, UserID(r.Context()))
	} else {
		err = h.tickets.CancelTicket(r.Context(), id, UserID(r.Context()))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID   uuid.UUID `json:"booking_id"`
		Method      string    `json:"method"`
		AmountCents int64     `json:"amount_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.payments.CreateAttempt(r.Context(), req.BookingID, req.Method,
		req.AmountCents, UserID(r.Context()), IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id":   p.ID,
		"booking_id":   p.BookingID,
		"method":       p.Method,
		"status":       p.Status,
		"amount_cents": p.AmountCents,
		"payment_url":  p.PaymentURL,
		"qr_code":      p.QRCode,
		"expires_at":   p.ExpiresAt,
	})
}

// PaymentCallback receives gateway webhooks. No auth, no idempotency header;
// authenticity is the provider signature and replays are handled inside the
// reconciler.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	p, err := h.recon.HandleCallback(r.Context(), method, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id": p.ID,
		"status":     p.Status,
	})
}

func (h *Handlers) AdminListBookings(w http.ResponseWriter, r *http.Request) {
	if !IsAdmin(r.Context()) {
		writeError(w, domain.ErrForbidden)
		return
	}
	list, err := h.repo.ListBookings(r.Context(), 500)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]bookingResponse, len(list))
	for i, sb := range list {
		resp[i] = toBookingResponse(sb)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Pool().Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Seat errors enumerate
// the offending seat ids so clients can refresh just those seats.
func writeError(w http.ResponseWriter, err error) {
	var seatConflict *domain.SeatConflictError
	var seatMissing *domain.SeatNotFoundError
	var wrongScreen *domain.SeatWrongScreenError

	switch {
	case errors.As(err, &seatConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "seats already held",
			"seat_ids": seatConflict.SeatIDs,
		})
	case errors.As(err, &seatMissing):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "seats not found",
			"seat_ids": seatMissing.SeatIDs,
		})
	case errors.As(err, &wrongScreen):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "seats not in showtime screen",
			"seat_ids": wrongScreen.SeatIDs,
		})
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "conflict, try again"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrShowtimeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrShowtimeStarted),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrPendingPayment),
		errors.Is(err, domain.ErrPaymentNotPending):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrRateNotFound),
		errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrVerificationFailed):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "verification failed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}
