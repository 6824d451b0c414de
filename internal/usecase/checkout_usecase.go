package usecase

import (
	"context"
	"errors"
	"net/http"

	"theater/internal/domain/model"
	repo "theater/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutUsecase struct {
	tx     repo.TransactionManager
	logger *zap.Logger
}

func NewCheckoutUsecase(tx repo.TransactionManager, logger *zap.Logger) *CheckoutUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutUsecase{tx: tx, logger: logger}
}

// Checkout はカートからPENDING注文を作る。
// チェックの順番は 購入済み → 販売可否 → 未払い注文の重複
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//カート行をロックして同じユーザーのcheckoutを直列にする
		cart, err := r.Carts().LockByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return EmptyCartError()
		}
		if err != nil {
			return dbError()
		}

		snap, err := buildSnapshot(ctx, r, cart)
		if err != nil {
			return dbError()
		}
		if snap.IsEmpty() {
			return EmptyCartError()
		}

		purchased, err := r.Orders().PurchasedMovieIDs(ctx, userID)
		if err != nil {
			return dbError()
		}
		remaining := model.CartSnapshot{Lines: make([]model.CartLine, 0, len(snap.Lines))}
		for _, l := range snap.Lines {
			if _, ok := purchased[l.MovieID]; ok {
				continue
			}
			remaining.Lines = append(remaining.Lines, l)
		}
		if remaining.IsEmpty() {
			return AllItemsAlreadyPurchasedError()
		}

		var unavailable []string
		for _, l := range remaining.Lines {
			if !l.Movie.IsAvailable() {
				unavailable = append(unavailable, l.Movie.Name)
			}
		}
		if len(unavailable) > 0 {
			return ItemsUnavailableError(unavailable)
		}

		pending, err := r.Orders().HasPendingOrderFor(ctx, userID, remaining.MovieIDs())
		if err != nil {
			return dbError()
		}
		if pending {
			return DuplicatePendingOrderError()
		}

		order, err := createOrder(ctx, r, userID, remaining)
		if err != nil {
			return dbError()
		}

		out = toOrderOutput(order)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order created",
		zap.Int64("order_id", out.ID),
		zap.Int64("user_id", userID),
		zap.Int("items", len(out.Items)),
		zap.String("total_amount", out.TotalAmount),
	)
	return out, nil
}

// 合計はここで一度だけ計算する
func createOrder(ctx context.Context, r repo.TxRepos, userID int64, snap model.CartSnapshot) (model.Order, error) {
	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		total = total.Add(l.UnitPrice)
		items = append(items, model.OrderItem{
			MovieID:      l.MovieID,
			PriceAtOrder: l.UnitPrice,
		})
	}

	orderID, err := r.Orders().Create(ctx, model.Order{
		UserID:      userID,
		Status:      model.OrderStatusPending,
		TotalAmount: total,
	})
	if err != nil {
		return model.Order{}, err
	}

	if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
		return model.Order{}, err
	}

	return r.Orders().FindByID(ctx, orderID)
}
