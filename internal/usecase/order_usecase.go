package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"theater/internal/domain/model"
	"theater/internal/payment"
	repo "theater/internal/repository"
	"theater/internal/validator"

	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx      repo.TransactionManager
	users   repo.UserRepository
	gateway payment.Gateway
	settler *Settler
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrderUsecase(tx repo.TransactionManager, users repo.UserRepository, gateway payment.Gateway, settler *Settler, logger *zap.Logger) *OrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{
		tx:      tx,
		users:   users,
		gateway: gateway,
		settler: settler,
		logger:  logger,
		now:     time.Now,
	}
}

type CancelOutput struct {
	Order   OrderOutput `json:"order"`
	Message string      `json:"message"`
}

type PayOutput struct {
	Order          OrderOutput    `json:"order"`
	PaymentID      int64          `json:"payment_id,omitempty"`
	PaymentStatus  string         `json:"payment_status"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	RequiresAction bool           `json:"requires_action"`
	ClientSecret   string         `json:"client_secret,omitempty"`
	NextAction     map[string]any `json:"next_action,omitempty"`
	Message        string         `json:"message"`
}

// 確定していればtrue。falseならwebhook待ち
func (o PayOutput) Settled() bool {
	return o.PaymentStatus == string(payment.StatusSucceeded)
}

func (u *OrderUsecase) ListMine(ctx context.Context, userID int64, page, perPage int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	page, perPage, err := normalizePage(page, perPage)
	if err != nil {
		return OrderListOutput{}, err
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: page, PerPage: perPage}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, perPage)
		if err != nil {
			return dbError()
		}
		for _, o := range orders {
			out.Items = append(out.Items, toOrderOutput(o))
		}
		out.Total = total
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMine(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	order, err := u.findMine(ctx, userID, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(order), nil
}

// 他人の注文は「存在しない扱い」にする
func (u *OrderUsecase) findMine(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid id")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUser(ctx, orderID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("order")
		}
		if err != nil {
			return dbError()
		}
		order = o
		return nil
	})
	return order, err
}

func (u *OrderUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (CancelOutput, error) {
	if userID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid id")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUser(ctx, orderID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("order")
		}
		if err != nil {
			return dbError()
		}
		if o.Status != model.OrderStatusPending {
			return InvalidStateError(o.Status)
		}

		//同時にpayが勝っていたら0件になる
		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, model.OrderStatusPending, model.OrderStatusCanceled)
		if err != nil {
			return dbError()
		}
		if !ok {
			cur, err := r.Orders().FindByID(ctx, orderID)
			if err != nil {
				return dbError()
			}
			return InvalidStateError(cur.Status)
		}

		o.Status = model.OrderStatusCanceled
		order = o
		return nil
	})
	if err != nil {
		return CancelOutput{}, err
	}

	u.logger.Info("order canceled", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	return CancelOutput{
		Order:   toOrderOutput(order),
		Message: fmt.Sprintf("Order %d successfully cancelled", orderID),
	}, nil
}

// Pay はゲートウェイ呼び出しをトランザクションの外で行い、
// 結果だけを短いトランザクションで反映する
func (u *OrderUsecase) Pay(ctx context.Context, userID int64, orderID int64, req payment.Request) (PayOutput, error) {
	order, err := u.findMine(ctx, userID, orderID)
	if err != nil {
		return PayOutput{}, err
	}
	if order.Status != model.OrderStatusPending {
		return PayOutput{}, InvalidStateError(order.Status)
	}

	req, err = validator.ValidatePaymentRequest(req, u.now())
	if err != nil {
		return PayOutput{}, PaymentValidationError(err.Error())
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return PayOutput{}, dbError()
	}
	if user == nil {
		return PayOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if !user.IsActive {
		return PayOutput{}, PaymentValidationError("user account is not active")
	}
	if !order.TotalAmount.IsPositive() {
		return PayOutput{}, PaymentValidationError("order total must be greater than zero")
	}

	result := u.gateway.ProcessPayment(ctx, payment.Charge{
		OrderID:   order.ID,
		UserID:    userID,
		Email:     user.Email,
		ItemCount: len(order.Items),
		Amount:    order.TotalAmount,
		Request:   req,
	})

	if !result.Success {
		u.logger.Info("payment declined",
			zap.Int64("order_id", order.ID),
			zap.String("code", result.ErrorCode),
			zap.String("transaction_id", result.TransactionID),
		)
		return PayOutput{}, PaymentDeclinedError(result.ErrorCode, result.Message, result.Suggestion, result.RetryAllowed)
	}

	//requires_action/processing はwebhookが確定させる
	if result.Pending() {
		u.logger.Info("payment pending confirmation",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(result.Status)),
			zap.String("transaction_id", result.TransactionID),
		)
		return PayOutput{
			Order:          toOrderOutput(order),
			PaymentStatus:  string(result.Status),
			TransactionID:  result.TransactionID,
			RequiresAction: result.RequiresAction,
			ClientSecret:   result.ClientSecret,
			NextAction:     result.NextAction,
			Message:        "Payment requires confirmation",
		}, nil
	}

	//課金済みなのでクライアント切断で記録が落ちないようにする
	paid, pay, err := u.settler.Settle(context.WithoutCancel(ctx), order.ID, result.TransactionID)
	if err != nil {
		return PayOutput{}, err
	}
	u.settler.NotifyPaid(ctx, paid, pay, user.Email)

	return PayOutput{
		Order:         toOrderOutput(paid),
		PaymentID:     pay.ID,
		PaymentStatus: string(result.Status),
		TransactionID: result.TransactionID,
		Message:       "Payment successful",
	}, nil
}
