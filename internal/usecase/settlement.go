package usecase

import (
	"context"
	"errors"
	"time"

	"theater/internal/domain/model"
	"theater/internal/notification"
	repo "theater/internal/repository"

	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// Settler は pay と webhook の両方から呼ばれる確定処理。
// PENDING→PAID の条件付きUPDATEに勝った方だけが Payment を作る
type Settler struct {
	tx       repo.TransactionManager
	notifier notification.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewSettler(tx repo.TransactionManager, notifier notification.Notifier, logger *zap.Logger) *Settler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settler{
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Settle は1トランザクションで 注文PAID + Payment + PaymentItem を書く
func (s *Settler) Settle(ctx context.Context, orderID int64, transactionID string) (model.Order, model.Payment, error) {
	var (
		order   model.Order
		payment model.Payment
	)

	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, model.OrderStatusPending, model.OrderStatusPaid)
		if err != nil {
			return dbError()
		}
		if !ok {
			cur, err := r.Orders().FindByID(ctx, orderID)
			if errors.Is(err, repo.ErrNotFound) {
				return NotFoundError("order")
			}
			if err != nil {
				return dbError()
			}
			return InvalidStateError(cur.Status)
		}

		order, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError()
		}

		txID := transactionID
		payment = model.Payment{
			UserID:            order.UserID,
			OrderID:           order.ID,
			Status:            model.PaymentStatusSuccessful,
			Amount:            order.TotalAmount,
			ExternalPaymentID: &txID,
		}
		paymentID, err := r.Payments().Create(ctx, payment)
		if errors.Is(err, repo.ErrAlreadyExists) {
			return InvalidStateError(model.OrderStatusPaid)
		}
		if err != nil {
			return dbError()
		}
		payment.ID = paymentID

		items := make([]model.PaymentItem, 0, len(order.Items))
		for _, it := range order.Items {
			items = append(items, model.PaymentItem{
				OrderItemID:    it.ID,
				MovieID:        it.MovieID,
				PriceAtPayment: it.PriceAtOrder,
				Movie:          it.Movie,
			})
		}
		if err := r.PaymentItems().CreateBulk(ctx, paymentID, items); err != nil {
			return dbError()
		}
		payment.Items = items
		return nil
	})
	if err != nil {
		if IsCode(err, CodeInvalidState) {
			//ゲートウェイでは課金済み。手動で突き合わせる必要がある
			s.logger.Warn("charge captured but order was not pending",
				zap.Int64("order_id", orderID),
				zap.String("transaction_id", transactionID),
				zap.Error(err),
			)
		}
		return model.Order{}, model.Payment{}, err
	}

	s.logger.Info("order paid",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", transactionID),
		zap.String("amount", money(payment.Amount)),
	)
	return order, payment, nil
}

// NotifyPaid はコミット後に呼ぶ。失敗はログだけ
func (s *Settler) NotifyPaid(ctx context.Context, order model.Order, payment model.Payment, email string) {
	if s.notifier == nil {
		return
	}
	txID := ""
	if payment.ExternalPaymentID != nil {
		txID = *payment.ExternalPaymentID
	}
	msg := notification.NewPaymentConfirmation(order.ID, payment.ID, order.UserID, email, payment.Amount, txID, s.now())

	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.Enqueue(nctx, msg); err != nil {
			s.logger.Error("enqueue payment confirmation failed",
				zap.Int64("order_id", order.ID),
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		}
	}()
}
