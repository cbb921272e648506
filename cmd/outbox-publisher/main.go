package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/rabbit"
	"github.com/DucAnhIT03/movie-serverside/internal/config"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
	"github.com/DucAnhIT03/movie-serverside/internal/outbox"
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	broker, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	publisher := outbox.NewPublisher(repo, broker, logger, 2*time.Second)
	logger.Info("outbox publisher started")
	if err := publisher.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("outbox publisher stopped: %v", err)
	}
	logger.Info("outbox publisher exiting")
}
