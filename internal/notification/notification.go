// Package notification は決済完了通知のメッセージと送信口を定義する。
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const QueuePaymentConfirmations = "payment_confirmations"

var ErrQueueFull = errors.New("notification queue is full")

// キューに載るJSON
type PaymentConfirmation struct {
	MessageID     string          `json:"message_id"`
	OrderID       int64           `json:"order_id"`
	PaymentID     int64           `json:"payment_id"`
	UserID        int64           `json:"user_id"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaidAt        time.Time       `json:"paid_at"`
}

func NewPaymentConfirmation(orderID, paymentID, userID int64, email string, amount decimal.Decimal, transactionID string, paidAt time.Time) PaymentConfirmation {
	return PaymentConfirmation{
		MessageID:     uuid.NewString(),
		OrderID:       orderID,
		PaymentID:     paymentID,
		UserID:        userID,
		Email:         email,
		Amount:        amount,
		TransactionID: transactionID,
		PaidAt:        paidAt.UTC(),
	}
}

// Notifier は通知をキューに積むだけ。送信は別プロセス
type Notifier interface {
	Enqueue(ctx context.Context, msg PaymentConfirmation) error
}

// Mailer は実際の送信
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, msg PaymentConfirmation) error
}

// LogMailer はメール送信の代わりにログへ出す
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPaymentConfirmation(ctx context.Context, msg PaymentConfirmation) error {
	m.logger.Info("payment confirmation email",
		zap.String("message_id", msg.MessageID),
		zap.String("to", msg.Email),
		zap.Int64("order_id", msg.OrderID),
		zap.String("amount", msg.Amount.StringFixed(2)),
		zap.String("transaction_id", msg.TransactionID),
	)
	return nil
}
