// Package reconciler turns inbound gateway callbacks into payment
// transitions. Delivery is at-least-once, so every step downstream of
// verification must tolerate replays.
package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/mongo"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/redis"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/gateway"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/payment"
)

type Reconciler struct {
	registry  *gateway.Registry
	payments  *payment.Ledger
	repo      *pg.Repository
	cache     *redis.Cache
	audit     *mongo.AuditLogger
	logger    observability.Logger
	dedupeTTL time.Duration
}

func New(registry *gateway.Registry, payments *payment.Ledger, repo *pg.Repository, cache *redis.Cache, audit *mongo.AuditLogger, logger observability.Logger, dedupeTTL time.Duration) *Reconciler {
	return &Reconciler{
		registry:  registry,
		payments:  payments,
		repo:      repo,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		dedupeTTL: dedupeTTL,
	}
}

// HandleCallback verifies, dedupes and applies one gateway callback.
// Ordering matters: authenticity first, then payment lookup and amount
// check, then the redis dedupe gate, then the transition. The database row
// lock inside Complete is the true idempotency guarantee; redis only short
// circuits the common replay.
func (r *Reconciler) HandleCallback(ctx context.Context, method string, payload []byte) (*domain.Payment, error) {
	res, err := r.registry.VerifyCallback(ctx, method, payload)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationFailed) {
			observability.CallbacksRejected.WithLabelValues(method).Inc()
			r.audit.LogCallback(ctx, mongo.CallbackAudit{
				Method:  method,
				Outcome: "rejected",
				Reason:  err.Error(),
				Payload: rawPayload(payload),
			})
		}
		return nil, err
	}

	p, err := r.lookupPayment(ctx, res)
	if err != nil {
		observability.CallbacksRejected.WithLabelValues(method).Inc()
		r.audit.LogCallback(ctx, mongo.CallbackAudit{
			Method:        method,
			Outcome:       "rejected",
			TransactionID: res.TransactionID,
			Reason:        "no matching payment",
			Payload:       rawPayload(payload),
		})
		return nil, err
	}

	if res.AmountCents != p.AmountCents {
		observability.CallbacksRejected.WithLabelValues(method).Inc()
		r.audit.LogCallback(ctx, mongo.CallbackAudit{
			Method:        method,
			Outcome:       "rejected",
			TransactionID: res.TransactionID,
			PaymentID:     p.ID.String(),
			Reason:        "amount mismatch",
			Payload:       rawPayload(payload),
		})
		return nil, errors.Wrapf(domain.ErrVerificationFailed, "callback amount %d does not match payment %s", res.AmountCents, p.ID)
	}

	first, err := r.cache.MarkCallbackSeen(ctx, res.TransactionID, r.dedupeTTL)
	if err != nil {
		// Redis being down must not drop callbacks; fall through to the
		// database, which handles the replay anyway.
		r.logger.WithField("transaction_id", res.TransactionID).Warn("callback dedupe check failed: ", err)
	} else if !first {
		r.audit.LogCallback(ctx, mongo.CallbackAudit{
			Method:        method,
			Outcome:       "duplicate",
			TransactionID: res.TransactionID,
			PaymentID:     p.ID.String(),
		})
		return p, nil
	}

	p, err = r.payments.Complete(ctx, p.ID, res.TransactionID, res.Success)
	if err != nil {
		return nil, err
	}

	r.audit.LogCallback(ctx, mongo.CallbackAudit{
		Method:        method,
		Outcome:       "accepted",
		TransactionID: res.TransactionID,
		PaymentID:     p.ID.String(),
		Payload:       rawPayload(payload),
	})
	r.logger.WithField("payment_id", p.ID.String()).Info("callback reconciled as ", string(p.Status))
	return p, nil
}

// lookupPayment resolves the callback to a payment row, preferring the
// payment id embedded in the order ref and falling back to the gateway
// transaction id for providers that issued one at request time.
func (r *Reconciler) lookupPayment(ctx context.Context, res *gateway.CallbackResult) (*domain.Payment, error) {
	if id, err := gateway.ParseOrderRef(res.OrderRef); err == nil {
		p, err := r.repo.GetPayment(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if res.TransactionID != "" {
		return r.repo.GetPaymentByTransactionID(ctx, res.TransactionID)
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "order ref %q", res.OrderRef)
}

func rawPayload(payload []byte) bson.M {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return bson.M{"raw": string(payload)}
	}
	doc := bson.M{}
	for k, v := range m {
		doc[k] = v
	}
	return doc
}
