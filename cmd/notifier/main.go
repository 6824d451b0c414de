package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"theater/internal/config"
	"theater/internal/infra/mq"
	"theater/internal/notification"
	"theater/internal/observability"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// 決済完了通知のワーカー。APIとは別プロセスで動かす
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := mq.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	consumer := mq.NewConsumer(conn, notification.QueuePaymentConfirmations, notification.NewLogMailer(logger.Named("mailer")), logger)
	logger.Info("notifier started", zap.String("queue", notification.QueuePaymentConfirmations))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
}
