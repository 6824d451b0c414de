package notification

import (
	"context"

	"go.uber.org/zap"
)

// MemoryQueue はRabbitMQが無い環境用のプロセス内キュー
type MemoryQueue struct {
	ch     chan PaymentConfirmation
	logger *zap.Logger
}

func NewMemoryQueue(size int, logger *zap.Logger) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		ch:     make(chan PaymentConfirmation, size),
		logger: logger,
	}
}

// いっぱいならブロックせずに ErrQueueFull
func (q *MemoryQueue) Enqueue(ctx context.Context, msg PaymentConfirmation) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run はctxが終わるまでmailerに渡し続ける
func (q *MemoryQueue) Run(ctx context.Context, mailer Mailer) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.ch:
			if err := mailer.SendPaymentConfirmation(ctx, msg); err != nil {
				q.logger.Error("send payment confirmation failed",
					zap.String("message_id", msg.MessageID),
					zap.Int64("order_id", msg.OrderID),
					zap.Error(err),
				)
			}
		}
	}
}
