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
	"theater/internal/handler"
	"theater/internal/infra/cache"
	"theater/internal/infra/db"
	"theater/internal/infra/mq"
	infraRepo "theater/internal/infra/repository"
	"theater/internal/notification"
	"theater/internal/observability"
	"theater/internal/payment"
	"theater/internal/server"
	"theater/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dedup, closeDedup := newEventStore(cfg, logger)
	defer closeDedup()

	//Usecase生成
	settler := usecase.NewSettler(txm, notifier, logger.Named("settlement"))
	cartUC := usecase.NewCartUsecase(txm)
	checkoutUC := usecase.NewCheckoutUsecase(txm, logger.Named("checkout"))
	orderUC := usecase.NewOrderUsecase(txm, userRepo, gateway, settler, logger.Named("order"))
	paymentUC := usecase.NewPaymentUsecase(txm)
	webhookUC := usecase.NewWebhookUsecase(payment.NewWebhookVerifier(cfg.StripeWebhookSecret), dedup, txm, userRepo, settler, cfg.StripeCurrency, logger)

	//Handler生成
	e := server.New(cfg, logger, userRepo, server.Handlers{
		Cart:    handler.NewCartHandler(cartUC),
		Order:   handler.NewOrderHandler(checkoutUC, orderUC),
		Payment: handler.NewPaymentHandler(paymentUC, webhookUC),
	})

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, logger)
}

func newGateway(cfg config.Config, logger *zap.Logger) (payment.Gateway, error) {
	if cfg.MockPayments {
		logger.Warn("MOCK_PAYMENTS is on; charges are simulated")
		return payment.NewMockGateway(), nil
	}
	return payment.NewStripeGateway(payment.StripeConfig{
		APIKey:    cfg.StripeSecretKey,
		Currency:  cfg.StripeCurrency,
		ReturnURL: cfg.StripeReturnURL,
		Logger:    logger,
	})
}

// RabbitMQが無ければプロセス内キュー + ログ出力
func newNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notification.Notifier, func(), error) {
	if cfg.RabbitMQURL == "" {
		q := notification.NewMemoryQueue(256, logger.Named("notify"))
		go q.Run(ctx, notification.NewLogMailer(logger.Named("mailer")))
		return q, func() {}, nil
	}

	conn, err := mq.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, err
	}
	return mq.NewPublisher(conn, notification.QueuePaymentConfirmations), func() { _ = conn.Close() }, nil
}

func newEventStore(cfg config.Config, logger *zap.Logger) (usecase.EventDeduplicator, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR is empty; webhook dedup is in-memory")
		return cache.NewMemoryEventStore(cache.DefaultEventTTL), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return cache.NewRedisEventStore(client, cache.DefaultEventTTL), func() { _ = client.Close() }
}
