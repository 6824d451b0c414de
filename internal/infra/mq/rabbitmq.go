package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"theater/internal/notification"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

// 全部durableで宣言する
func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

// Publisher は決済完了通知をキューに積む
type Publisher struct {
	conn  *amqp.Connection
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) *Publisher {
	return &Publisher{conn: conn, queue: queue}
}

func (p *Publisher) Enqueue(ctx context.Context, msg notification.PaymentConfirmation) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, p.queue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	return ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

type ackAction int

const (
	actionAck ackAction = iota
	actionRequeue
	actionDrop
)

// Consumer はキューから取り出してmailerに渡す
type Consumer struct {
	conn     *amqp.Connection
	queue    string
	mailer   notification.Mailer
	logger   *zap.Logger
	prefetch int
}

func NewConsumer(conn *amqp.Connection, queue string, mailer notification.Mailer, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		mailer:   mailer,
		logger:   logger,
		prefetch: 10,
	}
}

// Run はctxが終わるかチャネルが閉じるまでブロックする
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			switch c.handle(ctx, d.Body, d.Redelivered) {
			case actionAck:
				_ = d.Ack(false)
			case actionRequeue:
				_ = d.Nack(false, true)
			default:
				_ = d.Nack(false, false)
			}
		}
	}
}

// 壊れたメッセージは捨てる。送信失敗は1回だけ再配送
func (c *Consumer) handle(ctx context.Context, body []byte, redelivered bool) ackAction {
	var msg notification.PaymentConfirmation
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("invalid notification message", zap.Error(err))
		return actionDrop
	}

	if err := c.mailer.SendPaymentConfirmation(ctx, msg); err != nil {
		c.logger.Error("send payment confirmation failed",
			zap.String("message_id", msg.MessageID),
			zap.Int64("order_id", msg.OrderID),
			zap.Bool("redelivered", redelivered),
			zap.Error(err),
		)
		if redelivered {
			return actionDrop
		}
		return actionRequeue
	}
	return actionAck
}
