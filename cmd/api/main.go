package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	mongoadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/mongo"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	redisadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/redis"
	"github.com/DucAnhIT03/movie-serverside/internal/booking"
	"github.com/DucAnhIT03/movie-serverside/internal/config"
	"github.com/DucAnhIT03/movie-serverside/internal/gateway"
	httphandler "github.com/DucAnhIT03/movie-serverside/internal/http"
	"github.com/DucAnhIT03/movie-serverside/internal/ledger"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/payment"
	"github.com/DucAnhIT03/movie-serverside/internal/rate"
	"github.com/DucAnhIT03/movie-serverside/internal/reconciler"
	"github.com/DucAnhIT03/movie-serverside/internal/ticket"
)

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
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("ticketing")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cache := redisadapter.NewCache(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient)

	registry := gateway.NewRegistry(
		gateway.NewVNPay(cfg.VNPaySecret, cfg.VNPayTmnCode, cfg.VNPayBaseURL, cfg.ReturnURL, cfg.PaymentTTL),
		gateway.NewVietQR(cfg.VietQRSecret, cfg.VietQRBankCode, cfg.VietQRAccount, cfg.PaymentTTL),
		gateway.NewDeepLink(cfg.DeepLinkSecret, cfg.PaymentTTL),
		gateway.NewPayPal(cfg.PayPalSecret, cfg.PaymentTTL),
	)

	rates := rate.NewTable(repo)
	seats := ledger.NewSeatLedger(repo)
	engine := booking.NewEngine(repo, catalog, rates, seats, logger)
	payments := payment.NewLedger(repo, catalog, registry, logger)
	tickets := ticket.NewOps(engine, repo)
	recon := reconciler.New(registry, payments, repo, cache, audit, logger, cfg.CallbackDedupe)

	handlers := httphandler.NewHandlers(engine, tickets, payments, recon, repo, cache, logger)
	router := httphandler.SetupRouter(handlers, logger, cache, idemp, cfg.JWTSecret, cfg.IdempotencyTTL)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on ", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server exiting")
}
