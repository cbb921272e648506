package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/mongo"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/config"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/payment"
)

const batchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	catalog := mongoadapter.NewCatalogRepository(mongoClient.Database("ticketing"), logger)

	// The expiry path never talks to a gateway, so no registry is wired.
	payments := payment.NewLedger(repo, catalog, nil, logger)

	worker := &expiryWorker{repo: repo, payments: payments, logger: logger}
	logger.Info("expiry worker started")
	worker.Run(ctx, time.Minute)
	logger.Info("expiry worker exiting")
}

// expiryWorker fails PENDING payments whose gateway artifact expired. The
// actual transition goes through the payment ledger, which re-checks status
// under row lock, so racing a late callback is safe.
type expiryWorker struct {
	repo     *pg.Repository
	payments *payment.Ledger
	logger   observability.Logger
}

func (w *expiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.sweep(ctx, now.UTC())
		}
	}
}

func (w *expiryWorker) sweep(ctx context.Context, now time.Time) {
	expired, err := w.repo.ExpiredPendingPayments(ctx, now, batchSize)
	if err != nil {
		w.logger.Error("failed to list expired payments: ", err)
		return
	}
	for _, p := range expired {
		if err := w.payments.Expire(ctx, p.ID); err != nil {
			w.logger.WithField("payment_id", p.ID.String()).Error("failed to expire payment: ", err)
		}
	}
	if len(expired) > 0 {
		w.logger.WithField("count", len(expired)).Info("expired pending payments")
	}
}
